package notifier

import (
	"html"
	"strings"
	"time"
	"unicode/utf8"

	"gamewatch/internal/catalog"
	"gamewatch/internal/transport"
)

const (
	CardTitle = "🎮 New game added!"

	// DescriptionLimit is the number of description characters kept on a card.
	DescriptionLimit = 1000
	ellipsis         = "..."
)

// Renderer turns catalog entries into cards.
type Renderer struct {
	Location *time.Location
	Now      func() time.Time
}

// Render builds the card announcing entry id. The name falls back to the id
// when the catalog has none.
func (r Renderer) Render(id string, e catalog.Entry) transport.Card {
	name := e.OfficialName
	if strings.TrimSpace(name) == "" {
		name = id
	}

	var b strings.Builder
	b.WriteString("<b>")
	b.WriteString(html.EscapeString(name))
	b.WriteString("</b>")
	// Truncated before escaping.
	if desc := e.Description; desc != "" {
		b.WriteString("\n\n")
		b.WriteString(html.EscapeString(Truncate(desc, DescriptionLimit)))
	}

	now := time.Now
	if r.Now != nil {
		now = r.Now
	}
	ts := now()
	if r.Location != nil {
		ts = ts.In(r.Location)
	}

	return transport.Card{
		Title:     CardTitle,
		Body:      b.String(),
		ImageURL:  strings.TrimSpace(e.ImageURL),
		Footer:    "id: " + html.EscapeString(id),
		Timestamp: ts,
	}
}

// Truncate keeps the first n characters of s and appends "..." when
// anything was cut.
func Truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n]) + ellipsis
}
