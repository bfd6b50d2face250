// Package inbound holds the pure text rules applied to inbound mail: ticket
// reference detection, reply-quote stripping and sender parsing.
package inbound

import (
	"regexp"
	"strconv"
)

// ticketRefPattern is the subject contract with customers' mail clients.
var ticketRefPattern = regexp.MustCompile(`(?i)(?:re:\s*)?ticket\s*#(\d+)`)

// Classification is the result of inspecting a subject line.
type Classification struct {
	TicketID int64
	Matched  bool
}

// Classify extracts the first "Ticket #<n>" reference from subject. A
// reference that does not fit in an int64 is treated as no match.
func Classify(subject string) Classification {
	m := ticketRefPattern.FindStringSubmatch(subject)
	if m == nil {
		return Classification{}
	}
	id, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil || id <= 0 {
		return Classification{}
	}
	return Classification{TicketID: id, Matched: true}
}

// TicketReference renders the subject prefix replies must carry.
func TicketReference(ticketID int64) string {
	return "Ticket #" + strconv.FormatInt(ticketID, 10)
}
