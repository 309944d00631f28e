package reservationsvc

import (
	"context"
	"errors"

	"unilib/model"
	reservationrepo "unilib/repository/reservation"
)

type ErrCode string

const (
	ErrDuplicate    ErrCode = "DUPLICATE_RESERVATION"
	ErrBookNotFound ErrCode = "BOOK_NOT_FOUND"
	ErrNotStudent   ErrCode = "NOT_STUDENT"
)

type codedError struct{ code ErrCode }

func (e codedError) Error() string { return string(e.code) }
func (e codedError) Code() ErrCode { return e.code }
func makeErr(c ErrCode) error      { return codedError{code: c} }

// Code extracts error code
func Code(err error) ErrCode {
	var ce interface{ Code() ErrCode }
	if errors.As(err, &ce) {
		return ce.Code()
	}
	return ""
}

// View = repository shape
type View = reservationrepo.View

type Repo interface {
	Create(ctx context.Context, userID, bookID int64) (*model.Reservation, error)
	ListByUser(ctx context.Context, userID int64) ([]View, error)
}

type Service interface {
	// Reserve places a reservation; waitlisted when no copy is free.
	// No automation later promotes a waitlisted entry.
	Reserve(ctx context.Context, who model.Identity, bookID int64) (*model.Reservation, error)
	Mine(ctx context.Context, who model.Identity) ([]View, error)
}

type service struct{ r Repo }

func New(r Repo) Service { return &service{r: r} }

func (s *service) Reserve(ctx context.Context, who model.Identity, bookID int64) (*model.Reservation, error) {
	if who.Role != model.RoleStudent {
		return nil, makeErr(ErrNotStudent)
	}
	res, err := s.r.Create(ctx, who.UserID, bookID)
	if err != nil {
		switch {
		case errors.Is(err, reservationrepo.ErrDuplicate):
			return nil, makeErr(ErrDuplicate)
		case errors.Is(err, reservationrepo.ErrBookNotFound):
			return nil, makeErr(ErrBookNotFound)
		}
		return nil, err
	}
	return res, nil
}

func (s *service) Mine(ctx context.Context, who model.Identity) ([]View, error) {
	return s.r.ListByUser(ctx, who.UserID)
}
