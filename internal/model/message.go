package model

import (
	"strings"
	"time"
)

// MessageRef is a single hit from a mailbox poll.
type MessageRef struct {
	ID       string `json:"id"`
	ThreadID string `json:"thread_id"`
}

type Header struct {
	Name  string
	Value string
}

// MessageDetail is the decoded view of a provider message. HasPayload is
// false when the provider returned the message without a payload part.
type MessageDetail struct {
	ID           string
	ThreadID     string
	InternalDate int64 // milliseconds since epoch, 0 when unknown
	Headers      []Header
	PlainBody    string
	HTMLBody     string
	HasPayload   bool
}

// Header returns the first header matching name case-insensitively.
func (m *MessageDetail) Header(name string) (string, bool) {
	for _, h := range m.Headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value, true
		}
	}
	return "", false
}

// ReceivedAt converts InternalDate, falling back to fallback when unset.
func (m *MessageDetail) ReceivedAt(fallback time.Time) time.Time {
	if m.InternalDate <= 0 {
		return fallback
	}
	return time.UnixMilli(m.InternalDate)
}

type OutgoingMessage struct {
	To        string
	Subject   string
	Body      string
	ThreadID  string
	InReplyTo string
}

type SentMessage struct {
	ID       string `json:"id"`
	ThreadID string `json:"thread_id"`
}
