package model

import (
	"time"

	"github.com/google/uuid"
)

// EmailLog records the outcome of processing one inbox message. Rows are
// append-only.
type EmailLog struct {
	ID                 string    `json:"id"`
	UserID             string    `json:"user_id"`
	GmailMessageID     string    `json:"gmail_message_id"`
	SenderEmail        string    `json:"sender_email"`
	Subject            string    `json:"subject"`
	Category           Category  `json:"category"`
	ConfidenceScore    int       `json:"confidence_score"`
	ResponseSent       bool      `json:"response_sent"`
	ResponseTemplateID string    `json:"response_template_id,omitempty"`
	ProcessedAt        time.Time `json:"processed_at"`
	CreatedAt          time.Time `json:"created_at"`
}

func NewEmailLog(userID, gmailMessageID, sender, subject string, category Category, confidence int, processedAt time.Time) *EmailLog {
	return &EmailLog{
		ID:              uuid.New().String(),
		UserID:          userID,
		GmailMessageID:  gmailMessageID,
		SenderEmail:     sender,
		Subject:         subject,
		Category:        category,
		ConfidenceScore: confidence,
		ProcessedAt:     processedAt,
		CreatedAt:       time.Now(),
	}
}
