package personalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPersonalize(t *testing.T) {
	got := Personalize("Hi [Name], your ticket is [TicketID]", map[string]string{
		"Name":     "Jo",
		"TicketID": "T1",
	})
	assert.Equal(t, "Hi Jo, your ticket is T1", got)
}

func TestPersonalizeLeavesUnknownTokens(t *testing.T) {
	text := "Order [OrderNumber] for [Name]"

	assert.Equal(t, text, Personalize(text, map[string]string{"Email": "a@b.c"}))
	assert.Equal(t, "Order [OrderNumber] for Jo", Personalize(text, map[string]string{"Name": "Jo"}))
}

func TestPersonalizeReplacesEveryOccurrence(t *testing.T) {
	got := Personalize("[Name] [Name] [Name]", map[string]string{"Name": "Jo"})
	assert.Equal(t, "Jo Jo Jo", got)
}

func TestPersonalizeDoesNotRecurseIntoOwnValue(t *testing.T) {
	got := Personalize("Hello [Name]", map[string]string{"Name": "[Name]"})
	assert.Equal(t, "Hello [Name]", got)
}

func TestSenderName(t *testing.T) {
	tests := map[string]string{
		`"Jane Doe" <jane@example.com>`: "Jane Doe",
		"Jane Doe <jane@example.com>":   "Jane Doe",
		"jane.doe@example.com":          "Jane Doe",
		"<john_smith-jr@example.com>":   "John Smith Jr",
		"ALICE@example.com":             "Alice",
	}
	for from, want := range tests {
		assert.Equal(t, want, SenderName(from), from)
	}
}

func TestSenderAddress(t *testing.T) {
	assert.Equal(t, "jane@example.com", SenderAddress("Jane Doe <jane@example.com>"))
	assert.Equal(t, "jane@example.com", SenderAddress("jane@example.com"))
	assert.Equal(t, "x@y", SenderAddress("Broken <x@y>"))
}
