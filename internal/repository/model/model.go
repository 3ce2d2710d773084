package model

import (
	"time"

	"stockflow-service/internal/authz"
)

type User struct {
	Id           string    `bson:"_id" json:"id"`
	Email        string    `bson:"email" json:"email"`
	FirstName    string    `bson:"firstName" json:"firstName"`
	LastName     string    `bson:"lastName" json:"lastName"`
	Role         string    `bson:"role" json:"role"`
	PasswordHash string    `bson:"passwordHash" json:"-"`
	Active       bool      `bson:"active" json:"active"`
	CreatedAt    time.Time `bson:"createdAt" json:"createdAt"`
}

func (u *User) FullName() string {
	switch {
	case u.FirstName == "":
		return u.LastName
	case u.LastName == "":
		return u.FirstName
	default:
		return u.FirstName + " " + u.LastName
	}
}

// ToPrincipal builds the identity carried by the session and realtime connections.
func (u *User) ToPrincipal() authz.Principal {
	return authz.Principal{
		UserID: u.Id,
		Name:   u.FullName(),
		Email:  u.Email,
		Role:   u.Role,
	}
}
