package adapter

import (
	"context"
	"strings"
	"unicode/utf8"

	tele "gopkg.in/telebot.v4"

	kit "gamewatch/internal/transport"
	logx "gamewatch/pkg/logx"
)

const (
	telegramTextLimit    = 4000
	telegramCaptionLimit = 1024

	cardTimeLayout = "02/01/2006 15:04 MST"
)

func (a *Adapter) SendText(ctx context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) (kit.MessageRef, error) {
	if opt == nil {
		opt = &kit.SendOptions{}
	}
	chunks := splitTelegramText(text, telegramTextLimit, opt.ParseMode)
	if len(chunks) == 0 {
		chunks = []string{""}
	}

	chat := &tele.Chat{ID: to.ChatID}
	var first kit.MessageRef
	for i, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return first, err
		}
		msg, err := a.bot.Send(chat, chunk, &tele.SendOptions{
			ParseMode:             opt.ParseMode,
			DisableWebPagePreview: opt.DisablePreview,
			ThreadID:              to.ThreadID,
		})
		if err != nil {
			return first, err
		}
		if i == 0 {
			first = kit.MessageRef{ChatID: to.ChatID, ThreadID: to.ThreadID, MessageID: msg.ID}
		}
	}
	return first, nil
}

// SendCard posts a card as an HTML message. With an image, the card becomes
// the photo caption when it fits Telegram's caption limit; otherwise the
// photo is sent first and the text follows. A photo Telegram cannot fetch
// degrades to text only.
func (a *Adapter) SendCard(ctx context.Context, to kit.ChatTarget, card kit.Card) (kit.MessageRef, error) {
	if err := ctx.Err(); err != nil {
		return kit.MessageRef{}, err
	}
	text := formatCard(card)
	htmlOpt := &kit.SendOptions{ParseMode: tele.ModeHTML, DisablePreview: true}
	if card.ImageURL == "" {
		return a.SendText(ctx, to, text, htmlOpt)
	}

	chat := &tele.Chat{ID: to.ChatID}
	photo := &tele.Photo{File: tele.FromURL(card.ImageURL)}
	fits := utf8.RuneCountInString(text) <= telegramCaptionLimit
	if fits {
		photo.Caption = text
	}
	msg, err := a.bot.Send(chat, photo, &tele.SendOptions{ParseMode: tele.ModeHTML, ThreadID: to.ThreadID})
	if err != nil {
		a.log.Warn("card photo rejected; sending text only", logx.String("image", card.ImageURL), logx.Err(err))
		return a.SendText(ctx, to, text, htmlOpt)
	}
	ref := kit.MessageRef{ChatID: to.ChatID, ThreadID: to.ThreadID, MessageID: msg.ID}
	if fits {
		return ref, nil
	}
	if _, err := a.SendText(ctx, to, text, htmlOpt); err != nil {
		return ref, err
	}
	return ref, nil
}

// formatCard lays a card out as Telegram HTML.
func formatCard(c kit.Card) string {
	var b strings.Builder
	if c.Title != "" {
		b.WriteString("<b>")
		b.WriteString(c.Title)
		b.WriteString("</b>\n\n")
	}
	b.WriteString(c.Body)

	var foot []string
	if c.Footer != "" {
		foot = append(foot, c.Footer)
	}
	if !c.Timestamp.IsZero() {
		foot = append(foot, c.Timestamp.Format(cardTimeLayout))
	}
	if len(foot) > 0 {
		b.WriteString("\n\n<i>")
		b.WriteString(strings.Join(foot, " • "))
		b.WriteString("</i>")
	}
	return b.String()
}

// splitTelegramText splits long messages into chunks that are safe to send to Telegram.
// It prefers newline boundaries and (best-effort) avoids splitting inside HTML tags when ParseMode is HTML.
func splitTelegramText(s string, limit int, parseMode string) []string {
	if limit <= 0 {
		limit = telegramTextLimit
	}
	rs := []rune(s)
	if len(rs) <= limit {
		return []string{s}
	}

	out := make([]string, 0, (len(rs)+limit-1)/limit)
	start := 0
	for start < len(rs) {
		end := min(start+limit, len(rs))

		// Prefer a newline in the last two thirds of the window.
		if end < len(rs) {
			for i := end - 1; i > start+limit/3; i-- {
				if rs[i] == '\n' {
					end = i + 1
					break
				}
			}
		}

		if strings.EqualFold(parseMode, tele.ModeHTML) && end < len(rs) {
			lastOpen, lastClose := -1, -1
			for i := start; i < end; i++ {
				switch rs[i] {
				case '<':
					lastOpen = i
				case '>':
					lastClose = i
				}
			}
			if lastOpen > lastClose && lastOpen > start+1 {
				end = lastOpen
			}
		}

		out = append(out, strings.TrimRight(string(rs[start:end]), "\n"))
		start = end
		for start < len(rs) && rs[start] == '\n' {
			start++
		}
	}
	return out
}
