package models

import "time"

type User struct {
	ID           string
	Email        string
	Name         string
	Phone        string
	Role         string
	PasswordHash string
	CreatedAt    time.Time
}

const (
	RoleClient = "CLIENT"
	// RoleAdmin may issue refunds.
	RoleAdmin  = "ADMIN"
)
