package router

import (
	"html"
	"strings"
)

// HelpText renders the command list in Telegram HTML.
func (m *CommandManager) HelpText() string {
	cmds := m.Commands()
	lines := []string{"📚 <b>Commands</b>", ""}
	for _, c := range cmds {
		line := "/" + html.EscapeString(c.Name)
		if d := strings.TrimSpace(c.Description); d != "" {
			line += " - " + html.EscapeString(d)
		}
		if c.Access == AccessAdmin {
			line += " 🔒"
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}
