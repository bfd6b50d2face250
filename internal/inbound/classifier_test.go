package inbound

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		subject string
		want    Classification
	}{
		{"Re: Ticket #410 - issue", Classification{TicketID: 410, Matched: true}},
		{"Ticket #12", Classification{TicketID: 12, Matched: true}},
		{"re: ticket #5", Classification{TicketID: 5, Matched: true}},
		{"RE: TICKET #77 urgent", Classification{TicketID: 77, Matched: true}},
		{"Fwd: [ext] Ticket#9 follow up", Classification{TicketID: 9, Matched: true}},
		{"Nuovo Ticket #3 - Stampante e Ticket #4", Classification{TicketID: 3, Matched: true}},
		{"hello world", Classification{}},
		{"Ticket # abc", Classification{}},
		{"Ticket #99999999999999999999999", Classification{}},
		{"", Classification{}},
	}
	for _, tc := range cases {
		t.Run(tc.subject, func(t *testing.T) {
			assert.Equal(t, tc.want, Classify(tc.subject))
		})
	}
}

func TestClassifyIsStable(t *testing.T) {
	subject := "Re: Ticket #410 - issue"
	assert.Equal(t, Classify(subject), Classify(subject))
}

func TestTicketReferenceRoundTrip(t *testing.T) {
	subject := "Re: " + TicketReference(42) + " - Printer"
	assert.Equal(t, Classification{TicketID: 42, Matched: true}, Classify(subject))
}
