package notify

import (
	"strconv"
	"strings"

	"github.com/spec-kit/crm-helpdesk/internal/domain"
)

// Default templates used when no override is stored.
var defaultTemplates = map[domain.TemplateType]domain.EmailTemplate{
	domain.TemplateNewTicket: {
		Type:    domain.TemplateNewTicket,
		Subject: "Nuovo Ticket #{ticket_id} - {ticket_title}",
		Body: `Gentile {customer_name},

Il suo ticket #{ticket_id} "{ticket_title}" è stato creato con successo.

Descrizione: {ticket_description}
Priorità: {ticket_priority}
Stato: {ticket_status}

La terremo aggiornata sui progressi.

Cordiali saluti,
Il Team di Supporto`,
	},
	domain.TemplateUpdateTicket: {
		Type:    domain.TemplateUpdateTicket,
		Subject: "Aggiornamento Ticket #{ticket_id}",
		Body: `Gentile {customer_name},

Il suo ticket #{ticket_id} "{ticket_title}" è stato aggiornato.

Nuovo stato: {ticket_status}
{update_message}

Cordiali saluti,
Il Team di Supporto`,
	},
}

// DefaultTemplate returns the built-in template for t.
func DefaultTemplate(t domain.TemplateType) (domain.EmailTemplate, bool) {
	tpl, ok := defaultTemplates[t]
	return tpl, ok
}

// TicketVars builds the placeholder set for a ticket.
func TicketVars(ticket *domain.Ticket, updateMessage string) map[string]string {
	status := string(ticket.Status)
	if status == "" {
		status = string(domain.TicketStatusOpen)
	}
	return map[string]string{
		"ticket_id":          strconv.FormatInt(ticket.ID, 10),
		"ticket_title":       ticket.Title,
		"customer_name":      ticket.CustomerName,
		"ticket_description": ticket.Description,
		"ticket_priority":    string(ticket.Priority),
		"ticket_status":      status,
		"update_message":     updateMessage,
	}
}

// Render substitutes {name} placeholders. Unknown placeholders are left as is.
func Render(text string, vars map[string]string) string {
	if len(vars) == 0 {
		return text
	}
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(text)
}
