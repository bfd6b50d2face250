package mailbox

import "fmt"

// ConnectionError aborts a whole pass: connect, login, select or search failed.
type ConnectionError struct {
	Op  string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("imap %s: %v", e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// ParseError marks a single message that could not be fetched or decoded.
// The message is left unseen.
type ParseError struct {
	UID uint32
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("message uid %d: %v", e.UID, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }
