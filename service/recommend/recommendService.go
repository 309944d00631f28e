package recommendsvc

import (
	"context"
	"errors"

	"unilib/model"
	borrowrepo "unilib/repository/borrow"
)

// Limit caps how many suggestions one call returns.
const Limit = 5

type ErrCode string

const (
	ErrStudentNotFound ErrCode = "STUDENT_NOT_FOUND"
	ErrNotStudent      ErrCode = "NOT_STUDENT"
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

// HistoryRepo supplies the caller's borrow history.
type HistoryRepo interface {
	StudentByEmail(ctx context.Context, email string) (*model.Student, error)
	CategoriesBorrowed(ctx context.Context, studentID int64) ([]string, error)
	BorrowedBookIDs(ctx context.Context, studentID int64) ([]int64, error)
}

// CatalogRepo supplies ranked candidates.
type CatalogRepo interface {
	RankedByCategories(ctx context.Context, categories []string, excludeIDs []int64, limit int) ([]model.Book, error)
}

type Service interface {
	// ForStudent suggests up to Limit books from the categories the student
	// has borrowed, excluding books they already borrowed, ranked by global
	// borrow count. Stateless; recomputed on every call.
	ForStudent(ctx context.Context, who model.Identity) ([]model.Book, error)
}

type service struct {
	h HistoryRepo
	c CatalogRepo
}

func New(h HistoryRepo, c CatalogRepo) Service { return &service{h: h, c: c} }

func (s *service) ForStudent(ctx context.Context, who model.Identity) ([]model.Book, error) {
	if who.Role != model.RoleStudent {
		return nil, makeErr(ErrNotStudent)
	}
	st, err := s.h.StudentByEmail(ctx, who.Email)
	if err != nil {
		if errors.Is(err, borrowrepo.ErrNotFound) {
			return nil, makeErr(ErrStudentNotFound)
		}
		return nil, err
	}

	categories, err := s.h.CategoriesBorrowed(ctx, st.ID)
	if err != nil {
		return nil, err
	}
	if len(categories) == 0 {
		return nil, nil
	}

	exclude, err := s.h.BorrowedBookIDs(ctx, st.ID)
	if err != nil {
		return nil, err
	}
	return s.c.RankedByCategories(ctx, categories, exclude, Limit)
}
