package inbound

import (
	"regexp"
	"strings"
)

// dividers mark the start of quoted or system-generated content, in
// priority order. The first pattern that matches anywhere wins.
var dividers = compileDividers(
	`-----Messaggio originale-----`,
	`-----Original Message-----`,
	`-------- Messaggio originale --------`,
	`On .* wrote:`,
	`Il .* ha scritto:`,
	`From:.*\n.*To:.*\n.*Subject:`,
	`Da:.*\n.*A:.*\n.*Oggetto:`,
	`---\nQuesto è un messaggio automatico del sistema CRM\.`,
	`---.*CRM.*Ticket.*ID.*#\d+`,
	`---\nTicket ID: #\d+`,
)

var excessBlankLines = regexp.MustCompile(`\n{3,}`)

func compileDividers(patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		out = append(out, regexp.MustCompile(`(?is)`+p))
	}
	return out
}

// StripQuotedReply returns the newly written part of a reply body. It never
// fails; empty input yields an empty string.
func StripQuotedReply(body string) string {
	if body == "" {
		return ""
	}
	for _, re := range dividers {
		if loc := re.FindStringIndex(body); loc != nil {
			body = body[:loc[0]]
			break
		}
	}
	body = strings.TrimSpace(body)
	return excessBlankLines.ReplaceAllString(body, "\n\n")
}
