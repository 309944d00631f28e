package model

import "time"

type Role string

const (
	RoleStudent Role = "student"
	RoleStaff   Role = "staff"
)

type User struct {
	ID           int64     `json:"id"`
	FullName     string    `json:"full_name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	PhotoURL     string    `json:"photo_url,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Student is the library member row linked 1:1 to a user account by email.
type Student struct {
	ID           int64  `json:"id"`
	UserID       int64  `json:"user_id"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	Department   string `json:"department,omitempty"`
	EnrollmentNo string `json:"enrollment_no,omitempty"`
}

// Staff is disjoint from Student; staff accounts cannot borrow.
type Staff struct {
	ID     int64  `json:"id"`
	UserID int64  `json:"user_id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Title  string `json:"title,omitempty"`
}

// Identity is the authenticated caller, resolved once from the JWT by the
// middleware and passed explicitly into every service operation.
type Identity struct {
	UserID int64
	Email  string
	Role   Role
}

// RegisterReq represents user registration payload
// swagger:model RegisterReq
type RegisterReq struct {
	FullName     string `json:"full_name" validate:"required"`
	Email        string `json:"email" validate:"required,email"`
	Password     string `json:"password" validate:"required,min=6"`
	Role         Role   `json:"role" validate:"required,oneof=student staff"`
	Department   string `json:"department"`
	EnrollmentNo string `json:"enrollment_no"`
	Title        string `json:"title"`
}

// LoginReq represents login payload
// swagger:model LoginReq
type LoginReq struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// UpdatePasswordReq represents password change payload
// swagger:model UpdatePasswordReq
type UpdatePasswordReq struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=6"`
}
