package models

// User represents a registered user of the application.
type User struct {
	Base
	Email     string `gorm:"not null;uniqueIndex" json:"email"`
	Password  string `gorm:"not null" json:"-"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	IsActive  bool   `gorm:"default:true" json:"is_active"`

	// Relationships
	Accounts []Account `gorm:"foreignKey:UserID" json:"accounts,omitempty"`
}
