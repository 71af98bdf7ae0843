package models

import "github.com/golang-jwt/jwt/v5"

// User is the host-owned account record. Only the fields the purchase and
// receipt flows read are mapped.
type User struct {
	ID        string `db:"id" json:"id"`
	Email     string `db:"email" json:"email"`
	FirstName string `db:"first_name" json:"first_name"`
	LastName  string `db:"last_name" json:"last_name"`
	Address   string `db:"address" json:"address"`
	City      string `db:"city" json:"city"`
	Country   string `db:"country" json:"country"`
}

// Course is the host-owned course record.
type Course struct {
	ID        string `db:"id" json:"id"`
	ShortName string `db:"short_name" json:"short_name"`
	FullName  string `db:"full_name" json:"full_name"`
}

// JWTClaims is the payload of host-issued access tokens. PaymentManager
// grants access to other users' orders and instance configuration.
type JWTClaims struct {
	UserID         string `json:"user_id"`
	Email          string `json:"email"`
	PaymentManager bool   `json:"payment_manager"`
	jwt.RegisteredClaims
}
