package domain

import "time"

type UserRole string

const (
	RoleUser  UserRole = "user"
	RoleAdmin UserRole = "admin"
	RoleBoss  UserRole = "boss"
)

// User is keyed by the Telegram user id.
type User struct {
	ID        int64     `json:"id" db:"id"`
	Phone     string    `json:"phone" db:"phone"`
	FullName  string    `json:"full_name" db:"full_name"`
	Balance   Amount    `json:"balance" db:"balance"`
	Role      UserRole  `json:"role" db:"role"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

func (u *User) RoleEmoji() string {
	switch u.Role {
	case RoleBoss:
		return "👑"
	case RoleAdmin:
		return "🛠"
	default:
		return "👤"
	}
}

// Contact is what the chat transport hands over when a user shares their phone number.
type Contact struct {
	UserID    int64
	Phone     string
	FirstName string
	LastName  string
}

func (c Contact) FullName() string {
	if c.LastName == "" {
		return c.FirstName
	}
	return c.FirstName + " " + c.LastName
}
