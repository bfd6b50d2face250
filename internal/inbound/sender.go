package inbound

import (
	"regexp"
	"strings"
)

var addressPattern = regexp.MustCompile(`[\w.+-]+@[\w.-]+\.\w+`)

// Sender is the parsed From header.
type Sender struct {
	Name  string
	Email string
}

// ParseSender splits a "Display Name <addr@host>" header value. When no
// display name is present the local part of the address is used.
func ParseSender(from string) Sender {
	from = strings.TrimSpace(from)
	email := addressPattern.FindString(from)
	if email == "" {
		email = from
	}

	name := strings.ReplaceAll(from, "<"+email+">", "")
	name = strings.Trim(strings.TrimSpace(name), `"'`)
	name = strings.TrimSpace(name)
	if name == "" || strings.EqualFold(name, email) {
		name = localPart(email)
	}
	return Sender{Name: name, Email: email}
}

func localPart(email string) string {
	if at := strings.Index(email, "@"); at >= 0 {
		return email[:at]
	}
	return email
}
