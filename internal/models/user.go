package models

// User is the identity record owned by the auth service. This API reads it and
// never changes credentials.
type User struct {
	Base
	Email    string `gorm:"uniqueIndex;not null" json:"email"`
	Nickname string `json:"nickname"`
	IsActive bool   `gorm:"default:true" json:"is_active"`

	Profile *UserProfile `gorm:"foreignKey:UserID" json:"profile,omitempty"`
}

// UserProfile carries a user's gamification balances.
type UserProfile struct {
	Base
	UserID     string `gorm:"type:uuid;uniqueIndex;not null" json:"user_id"`
	Point      int64  `gorm:"not null;default:0" json:"point"`
	Experience int64  `gorm:"not null;default:0" json:"experience"`
	Level      int    `gorm:"not null;default:1" json:"level"`
}

// levelThresholds is the minimum cumulative experience for levels 2..5.
var levelThresholds = []int64{10000, 30000, 100000, 300000}

// LevelForExperience maps cumulative experience to a level between 1 and 5.
func LevelForExperience(exp int64) int {
	level := 1
	for _, min := range levelThresholds {
		if exp < min {
			break
		}
		level++
	}
	return level
}

// ExperiencePerPoint is the experience credited for each reward point.
const ExperiencePerPoint = 10
