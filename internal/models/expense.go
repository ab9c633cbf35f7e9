package models

import "time"

// Expense is a single spending record in a user's ledger.
type Expense struct {
	Base
	UserID      string    `gorm:"type:uuid;not null;index:idx_expenses_user_date" json:"user_id"`
	CategoryID  *string   `gorm:"type:uuid;index" json:"category_id,omitempty"`
	Amount      int64     `gorm:"type:bigint;not null" json:"amount"`
	Description string    `json:"description"`
	Date        time.Time `gorm:"type:date;not null;index:idx_expenses_user_date" json:"date"`

	// UserChallengeID is a weak link maintained by the attribution engine.
	UserChallengeID *string `gorm:"type:uuid;index" json:"user_challenge_id,omitempty"`

	// Relationships
	Category *Category `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
}
