// model/book.go
package model

import "time"

type Book struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Author      string `json:"author"`
	ISBN        string `json:"isbn,omitempty"`
	Category    string `json:"category"`
	Description string `json:"description,omitempty"`
	CoverURL    string `json:"cover_url,omitempty"`
	IsDigital   bool   `json:"is_digital"`
	DigitalURL  string `json:"digital_url,omitempty"`

	// AvailableCopies never exceeds TotalCopies and never drops below zero.
	AvailableCopies int64     `json:"available_copies"`
	TotalCopies     int64     `json:"total_copies"`
	CreatedAt       time.Time `json:"created_at"`
}

// CreateBookReq represents catalog entry creation payload
// swagger:model CreateBookReq
type CreateBookReq struct {
	Title       string `json:"title" validate:"required"`
	Author      string `json:"author" validate:"required"`
	ISBN        string `json:"isbn"`
	Category    string `json:"category"`
	Description string `json:"description"`
	CoverURL    string `json:"cover_url"`
	IsDigital   bool   `json:"is_digital"`
	DigitalURL  string `json:"digital_url"`
	TotalCopies int64  `json:"total_copies" validate:"required,gt=0"`
}

// UpdateBookReq represents catalog entry update payload
// swagger:model UpdateBookReq
type UpdateBookReq struct {
	Title       string `json:"title" validate:"required"`
	Author      string `json:"author" validate:"required"`
	ISBN        string `json:"isbn"`
	Category    string `json:"category"`
	Description string `json:"description"`
	CoverURL    string `json:"cover_url"`
	IsDigital   bool   `json:"is_digital"`
	DigitalURL  string `json:"digital_url"`
	TotalCopies int64  `json:"total_copies" validate:"required,gt=0"`
}
