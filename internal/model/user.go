package model

import "time"

// User is a row in the users table. The password hash never leaves the server.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}

// RoleAdmin is the only role value that grants dashboard access.
const RoleAdmin = "admin"
