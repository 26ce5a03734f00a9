package db

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is wrapped by every lookup that matches no row.
var ErrNotFound = errors.New("not found")

// Category classifies a message for suppression purposes
type Category string

const (
	CategoryNotification Category = "NOTIFICATION"
	CategoryPromotion    Category = "PROMOTION"
	CategoryGeneral      Category = "GENERAL"
	CategorySettings     Category = "SETTINGS"
	CategoryInvoice      Category = "INVOICE"
	CategorySuggestion   Category = "SUGGESTION"
)

// Categories lists every Category in declaration order.
var Categories = []Category{
	CategoryNotification,
	CategoryPromotion,
	CategoryGeneral,
	CategorySettings,
	CategoryInvoice,
	CategorySuggestion,
}

func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// FeedbackCategory classifies a user submitted feedback message
type FeedbackCategory string

const (
	FeedbackSuggestion FeedbackCategory = "SUGGESTION"
	FeedbackBug        FeedbackCategory = "BUG"
	FeedbackError      FeedbackCategory = "ERROR"
	FeedbackOther      FeedbackCategory = "OTHER"
)

var FeedbackCategories = []FeedbackCategory{
	FeedbackSuggestion,
	FeedbackBug,
	FeedbackError,
	FeedbackOther,
}

func (c FeedbackCategory) Valid() bool {
	for _, known := range FeedbackCategories {
		if c == known {
			return true
		}
	}
	return false
}

// Language constants, as stored in users.preferred_language
const (
	LanguageEnglish = "EN"
	LanguageSpanish = "ES"
	LanguageFrench  = "FR"
	LanguageOther   = "OT"
)

// MaxSuppressedCategories bounds SuppressionEntry.Categories
const MaxSuppressedCategories = 5

// ContentBlock is an immutable chunk of email content
type ContentBlock struct {
	ID        uuid.UUID `json:"id"`
	Title     *string   `json:"title,omitempty"`
	Body      *string   `json:"body,omitempty"`
	HasLink   bool      `json:"has_link"`
	LinkLabel *string   `json:"link_label,omitempty"`
	LinkURL   *string   `json:"link_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// User is the read model of the externally managed user store
type User struct {
	ID                uuid.UUID `json:"id"`
	Email             string    `json:"email"`
	FirstName         string    `json:"first_name"`
	PreferredLanguage string    `json:"preferred_language"`
	CreatedAt         time.Time `json:"created_at"`
}

// SuppressionEntry lists the categories a user opted out of
type SuppressionEntry struct {
	ID         uuid.UUID  `json:"id"`
	UserID     uuid.UUID  `json:"user_id"`
	Categories []Category `json:"categories"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// Message is a single addressed, schedulable email
type Message struct {
	ID                uuid.UUID   `json:"id"`
	Header            string      `json:"header"`
	Category          Category    `json:"category"`
	Subject           string      `json:"subject"`
	RecipientID       uuid.UUID   `json:"recipient_id"`
	Language          string      `json:"language"`
	BlockIDs          []uuid.UUID `json:"block_ids"`
	IsTest            bool        `json:"is_test"`
	ScheduledSendTime *time.Time  `json:"scheduled_send_time,omitempty"`
	SentTime          *time.Time  `json:"sent_time,omitempty"`
	WasSent           bool        `json:"was_sent"`
	SkippedAt         *time.Time  `json:"skipped_at,omitempty"`
	CreatedAt         time.Time   `json:"created_at"`
	UpdatedAt         time.Time   `json:"updated_at"`
}

// BulkMessage is a template fanned out into one Message per matching user
type BulkMessage struct {
	ID                uuid.UUID   `json:"id"`
	Header            string      `json:"header"`
	Category          Category    `json:"category"`
	Subject           string      `json:"subject"`
	Language          string      `json:"language"`
	BlockIDs          []uuid.UUID `json:"block_ids"`
	IsTest            bool        `json:"is_test"`
	ScheduledSendTime *time.Time  `json:"scheduled_send_time,omitempty"`
	SentTime          *time.Time  `json:"sent_time,omitempty"`
	WasSent           bool        `json:"was_sent"`
	CreatedAt         time.Time   `json:"created_at"`
	UpdatedAt         time.Time   `json:"updated_at"`
}

// FeedbackMessage is user feedback addressed to the operator inbox
type FeedbackMessage struct {
	ID        uuid.UUID        `json:"id"`
	AuthorID  uuid.UUID        `json:"author_id"`
	Category  FeedbackCategory `json:"category"`
	Subject   string           `json:"subject"`
	Header    string           `json:"header"`
	BlockIDs  []uuid.UUID      `json:"block_ids"`
	WasRead   bool             `json:"was_read"`
	SentTime  *time.Time       `json:"sent_time,omitempty"`
	WasSent   bool             `json:"was_sent"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// Claim kinds used by the send lease
const (
	KindMessage  = "message"
	KindBulk     = "bulk"
	KindFeedback = "feedback"
)
