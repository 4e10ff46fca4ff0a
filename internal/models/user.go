package models

import "time"

type User struct {
	ID        string    `json:"user_id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Password  string    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Identity : un utilisateur authentifié et son token
type Identity struct {
	User
	Token string `json:"token,omitempty"`
}
