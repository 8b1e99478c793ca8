package model

import (
	"time"

	"github.com/google/uuid"
)

type Category string

const (
	CategoryOrder   Category = "order"
	CategorySupport Category = "support"
	CategoryGeneral Category = "general"

	CategoryFeedback     Category = "feedback"
	CategoryBilling      Category = "billing"
	CategoryShipping     Category = "shipping"
	CategoryRefund       Category = "refund"
	CategoryComplaint    Category = "complaint"
	CategoryInquiry      Category = "inquiry"
	CategoryTechnical    Category = "technical"
	CategoryAccount      Category = "account"
	CategoryCancellation Category = "cancellation"
	CategoryPartnership  Category = "partnership"
)

var validCategories = map[Category]bool{
	CategoryOrder:        true,
	CategorySupport:      true,
	CategoryGeneral:      true,
	CategoryFeedback:     true,
	CategoryBilling:      true,
	CategoryShipping:     true,
	CategoryRefund:       true,
	CategoryComplaint:    true,
	CategoryInquiry:      true,
	CategoryTechnical:    true,
	CategoryAccount:      true,
	CategoryCancellation: true,
	CategoryPartnership:  true,
}

func (c Category) Valid() bool {
	return validCategories[c]
}

// BaseCategories are the categories seeded with a default template when a
// user signs up.
func BaseCategories() []Category {
	return []Category{CategoryOrder, CategorySupport, CategoryGeneral}
}

type Template struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Category  Category  `json:"category"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func NewTemplate(userID string, category Category, subject, body string) *Template {
	now := time.Now()
	return &Template{
		ID:        uuid.New().String(),
		UserID:    userID,
		Category:  category,
		Subject:   subject,
		Body:      body,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
