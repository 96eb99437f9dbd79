// Package users owns accounts, API tokens, email confirmation and contacts.
package users

import "github.com/ariefcatur/go-retail-orders/internal/auth"

type User struct {
	ID           int64     `json:"id"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	Email        string    `json:"email"`
	Company      string    `json:"company"`
	Position     string    `json:"position"`
	Type         auth.Role `json:"type"`
	Contacts     []Contact `json:"contacts"`
	IsActive     bool      `json:"-"`
	PasswordHash string    `json:"-"`
}

// Contact is a shipping address owned by a user.
type Contact struct {
	ID         int64  `json:"id"`
	Country    string `json:"country"`
	Region     string `json:"region"`
	City       string `json:"city"`
	Street     string `json:"street"`
	House      string `json:"house"`
	Structure  string `json:"structure"`
	Building   string `json:"building"`
	Apartment  string `json:"apartment"`
	Phone      string `json:"phone"`
	PostalCode string `json:"postal_code"`
}

type RegisterInput struct {
	FirstName string    `json:"first_name" validate:"required,max=40"`
	LastName  string    `json:"last_name" validate:"required,max=40"`
	Email     string    `json:"email" validate:"required,email"`
	Password  string    `json:"password" validate:"required"`
	Company   string    `json:"company" validate:"max=40"`
	Position  string    `json:"position" validate:"max=40"`
	Type      auth.Role `json:"type" validate:"omitempty,oneof=client retailer"`
}

// DetailsPatch is a partial update of the account; nil fields are left alone.
type DetailsPatch struct {
	FirstName *string    `json:"first_name" validate:"omitempty,max=40"`
	LastName  *string    `json:"last_name" validate:"omitempty,max=40"`
	Company   *string    `json:"company" validate:"omitempty,max=40"`
	Position  *string    `json:"position" validate:"omitempty,max=40"`
	Type      *auth.Role `json:"type" validate:"omitempty,oneof=client retailer"`
	Password  *string    `json:"password"`
}

type ContactInput struct {
	Country    string `json:"country" validate:"required,max=50"`
	Region     string `json:"region" validate:"max=50"`
	City       string `json:"city" validate:"required,max=50"`
	Street     string `json:"street" validate:"required,max=100"`
	House      string `json:"house" validate:"required,max=15"`
	Structure  string `json:"structure" validate:"max=15"`
	Building   string `json:"building" validate:"max=15"`
	Apartment  string `json:"apartment" validate:"max=15"`
	Phone      string `json:"phone" validate:"required,max=20"`
	PostalCode string `json:"postal_code" validate:"required,max=10"`
}

type ContactPatch struct {
	ID         int64   `json:"id_contact" validate:"required,gt=0"`
	Country    *string `json:"country" validate:"omitempty,min=1,max=50"`
	Region     *string `json:"region" validate:"omitempty,max=50"`
	City       *string `json:"city" validate:"omitempty,min=1,max=50"`
	Street     *string `json:"street" validate:"omitempty,min=1,max=100"`
	House      *string `json:"house" validate:"omitempty,min=1,max=15"`
	Structure  *string `json:"structure" validate:"omitempty,max=15"`
	Building   *string `json:"building" validate:"omitempty,max=15"`
	Apartment  *string `json:"apartment" validate:"omitempty,max=15"`
	Phone      *string `json:"phone" validate:"omitempty,min=1,max=20"`
	PostalCode *string `json:"postal_code" validate:"omitempty,min=1,max=10"`
}

type DeleteResult struct {
	Deleted  []int64 `json:"deleted"`
	NotFound []int64 `json:"not_found"`
}
