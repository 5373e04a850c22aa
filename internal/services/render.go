package services

import (
	"strings"

	"github.com/hordalan/checkin-bot/internal/domain"
)

// Placeholder is the content of a status message before its body is known.
const Placeholder = "Updating check-in status…"

var markdownEscaper = strings.NewReplacer(
	`\`, `\\`,
	`*`, `\*`,
	`_`, `\_`,
	`~`, `\~`,
	"`", "\\`",
	`|`, `\|`,
	`>`, `\>`,
	"\r\n", " ",
	"\n", " ",
	"\r", " ",
)

// EscapeMarkdown neutralizes markdown control characters and flattens line
// breaks so user text stays inside its bullet.
func EscapeMarkdown(s string) string { return markdownEscaper.Replace(s) }

// FormatStatus composes the two-section status body. Users render in the
// order given; callers pass them ordered by id.
//
//	**In:** <@1>, <@2>
//	**Out:**
//	- <@3>: *back at 5pm*
//	- <@4>
//	<headerExtra>
func FormatStatus(users []domain.User, headerExtra string) string {
	var in, out []string
	for _, u := range users {
		if u.Presence.IsIn() {
			in = append(in, u.Mention())
			continue
		}
		if m := u.Presence.Message; m != nil && *m != "" {
			out = append(out, "- "+u.Mention()+": *"+EscapeMarkdown(*m)+"*")
		} else {
			out = append(out, "- "+u.Mention())
		}
	}

	var b strings.Builder
	b.WriteString("**In:** ")
	b.WriteString(strings.Join(in, ", "))
	b.WriteString("\n**Out:**\n")
	b.WriteString(strings.Join(out, "\n"))
	b.WriteString("\n")
	b.WriteString(headerExtra)
	return b.String()
}

// EventLine is the header extra announcing who changed state.
func EventLine(externalID string, present bool) string {
	action := "checked out"
	if present {
		action = "checked in"
	}
	return "_<@" + externalID + "> " + action + "_"
}
