// model/borrow.go
package model

import "time"

type BorrowStatus string

const (
	// Pending-request workflow: staff vets the request before any copy moves.
	BorrowPending  BorrowStatus = "pending"
	BorrowApproved BorrowStatus = "approved"
	BorrowRejected BorrowStatus = "rejected"

	// Loan lifecycle. Only the borrowed->returned path touches copy counts:
	// -1 when the record is created, +1 when staff approves the return.
	Borrowed        BorrowStatus = "borrowed"
	ReturnRequested BorrowStatus = "return_requested"
	Returned        BorrowStatus = "returned"
	Overdue         BorrowStatus = "overdue"
)

// transitions is the single source of truth for the loan state machine.
var transitions = map[BorrowStatus][]BorrowStatus{
	BorrowPending:   {BorrowApproved, BorrowRejected},
	Borrowed:        {ReturnRequested, Overdue},
	Overdue:         {ReturnRequested},
	ReturnRequested: {Returned},
}

// CanTransitionTo reports whether s -> next is a legal transition.
func (s BorrowStatus) CanTransitionTo(next BorrowStatus) bool {
	for _, n := range transitions[s] {
		if n == next {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transition exists from s.
func (s BorrowStatus) Terminal() bool { return len(transitions[s]) == 0 }

// Unreturned reports whether the record still holds a copy and therefore
// counts against the student's concurrent-borrow limit.
func (s BorrowStatus) Unreturned() bool {
	return s == Borrowed || s == ReturnRequested || s == Overdue
}

type BorrowRecord struct {
	ID         int64        `json:"id"`
	StudentID  int64        `json:"student_id"`
	BookID     int64        `json:"book_id"`
	BorrowedAt time.Time    `json:"borrowed_at"`
	DueAt      time.Time    `json:"due_at"`
	ReturnedAt *time.Time   `json:"returned_at,omitempty"`
	Status     BorrowStatus `json:"status"`
}

// LoanPeriod is the fixed loan length; due_at = borrowed_at + LoanPeriod,
// no renewals.
const LoanPeriod = 14 * 24 * time.Hour

// MaxConcurrentBorrows caps unreturned records per student.
const MaxConcurrentBorrows = 4
