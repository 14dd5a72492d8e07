package domain

import "time"

// Account statuses. New accounts start pending and become active once the
// email OTP has been verified.
const (
	StatusPending = "pending"
	StatusActive  = "active"
)

type User struct {
	UserID       string     `json:"id" dynamodbav:"user_id"`
	Email        string     `json:"email" dynamodbav:"email"`
	Phone        *string    `json:"phone" dynamodbav:"phone"`
	PasswordHash string     `json:"-" dynamodbav:"password_hash"`
	DisplayName  string     `json:"display_name" dynamodbav:"display_name"`
	Role         string     `json:"role" dynamodbav:"role"`
	Status       string     `json:"status" dynamodbav:"status"` // "pending" | "active"
	Enable       int        `json:"enable" dynamodbav:"enable"`
	DeletedAt    *time.Time `json:"deleted_at,omitempty" dynamodbav:"deleted_at"`
	CreatedAt    time.Time  `json:"created" dynamodbav:"created_at"`
	UpdatedAt    time.Time  `json:"updated" dynamodbav:"updated_at"`
}

// Verified reports whether the account has completed email verification.
func (u *User) Verified() bool {
	return u.Status == StatusActive
}
