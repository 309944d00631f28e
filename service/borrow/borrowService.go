package borrowsvc

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"unilib/model"
	borrowrepo "unilib/repository/borrow"
)

// errors used by controllers

type ErrCode string

const (
	ErrStudentNotFound ErrCode = "STUDENT_NOT_FOUND"
	ErrAlreadyBorrowed ErrCode = "ALREADY_BORROWED"
	ErrBorrowLimit     ErrCode = "BORROW_LIMIT"
	ErrBookUnavailable ErrCode = "BOOK_UNAVAILABLE"
	ErrNotFound        ErrCode = "NOT_FOUND"
	ErrNotOwner        ErrCode = "NOT_OWNER"
	ErrNotBorrowed     ErrCode = "NOT_BORROWED"
	ErrNotRequested    ErrCode = "NOT_REQUESTED"
	ErrNotPending      ErrCode = "NOT_PENDING"
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

// Detail = repository shape
type Detail = borrowrepo.Detail

// ListFilter = repository shape
type ListFilter = borrowrepo.ListFilter

type Repo interface {
	StudentByEmail(ctx context.Context, email string) (*model.Student, error)

	LockStudent(ctx context.Context, tx *sql.Tx, studentID int64) error
	CountUnreturned(ctx context.Context, tx *sql.Tx, studentID int64) (int64, error)
	HasUnreturned(ctx context.Context, tx *sql.Tx, studentID, bookID int64) (bool, error)
	DecrementAvailable(ctx context.Context, tx *sql.Tx, bookID int64) (bool, error)
	InsertRecord(ctx context.Context, tx *sql.Tx, rec *model.BorrowRecord) error

	MarkReturnRequested(ctx context.Context, recordID, studentID int64) (int64, error)
	GetForUpdate(ctx context.Context, tx *sql.Tx, recordID int64) (*model.BorrowRecord, error)
	MarkReturned(ctx context.Context, tx *sql.Tx, recordID int64, returnedAt time.Time) (int64, error)
	IncrementAvailable(ctx context.Context, tx *sql.Tx, bookID int64) error

	InsertPending(ctx context.Context, rec *model.BorrowRecord) error
	SetRequestOutcome(ctx context.Context, recordID int64, to model.BorrowStatus) (int64, error)

	ListByStudent(ctx context.Context, studentID int64) ([]Detail, error)
	List(ctx context.Context, f ListFilter) ([]Detail, error)
	MarkOverdue(ctx context.Context, now time.Time) (int64, error)

	WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error
}

type Service interface {
	// Borrow checks the caller's limits and takes a copy atomically.
	Borrow(ctx context.Context, who model.Identity, bookID int64) (*model.BorrowRecord, error)

	// RequestReturn moves the caller's own loan to return_requested.
	RequestReturn(ctx context.Context, who model.Identity, recordID int64) error

	// ApproveReturn finalizes a requested return and frees the copy.
	// Staff only; the sole path that sets returned_at.
	ApproveReturn(ctx context.Context, recordID int64) error

	// RequestBorrow files a pending request for staff to vet. No copy moves.
	RequestBorrow(ctx context.Context, who model.Identity, bookID int64) (*model.BorrowRecord, error)
	ApproveRequest(ctx context.Context, recordID int64) error
	RejectRequest(ctx context.Context, recordID int64) error

	// MyLoans lists the caller's records with live fines.
	MyLoans(ctx context.Context, who model.Identity) ([]Detail, error)

	// Loans lists all records for staff oversight.
	Loans(ctx context.Context, f ListFilter) ([]Detail, error)

	// SweepOverdue flips past-due loans to overdue.
	SweepOverdue(ctx context.Context) (int64, error)
}

// ----- Service implementation -----

type service struct {
	r   Repo
	now func() time.Time
}

func New(r Repo) Service { return &service{r: r, now: time.Now} }

// NewWithClock is for tests that pin time.
func NewWithClock(r Repo, now func() time.Time) Service { return &service{r: r, now: now} }

func (s *service) student(ctx context.Context, who model.Identity) (*model.Student, error) {
	if who.Role != model.RoleStudent {
		return nil, makeErr(ErrNotStudent)
	}
	st, err := s.r.StudentByEmail(ctx, who.Email)
	if err != nil {
		if errors.Is(err, borrowrepo.ErrNotFound) {
			return nil, makeErr(ErrStudentNotFound)
		}
		return nil, err
	}
	return st, nil
}

func (s *service) Borrow(ctx context.Context, who model.Identity, bookID int64) (*model.BorrowRecord, error) {
	st, err := s.student(ctx, who)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	rec := &model.BorrowRecord{
		StudentID:  st.ID,
		BookID:     bookID,
		BorrowedAt: now,
		DueAt:      now.Add(model.LoanPeriod),
		Status:     model.Borrowed,
	}

	// One transaction for the whole borrow. The student row lock serializes
	// concurrent borrows by the same student, so the duplicate and limit
	// counts see every committed record; the guarded decrement rejects the
	// borrow when no copy is left.
	err = s.r.WithTx(ctx, func(tx *sql.Tx) error {
		if err := s.r.LockStudent(ctx, tx, st.ID); err != nil {
			if errors.Is(err, borrowrepo.ErrNotFound) {
				return makeErr(ErrStudentNotFound)
			}
			return err
		}

		dup, err := s.r.HasUnreturned(ctx, tx, st.ID, bookID)
		if err != nil {
			return err
		}
		if dup {
			return makeErr(ErrAlreadyBorrowed)
		}

		n, err := s.r.CountUnreturned(ctx, tx, st.ID)
		if err != nil {
			return err
		}
		if n >= model.MaxConcurrentBorrows {
			return makeErr(ErrBorrowLimit)
		}

		taken, err := s.r.DecrementAvailable(ctx, tx, bookID)
		if err != nil {
			return err
		}
		if !taken {
			return makeErr(ErrBookUnavailable)
		}

		return s.r.InsertRecord(ctx, tx, rec)
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *service) RequestReturn(ctx context.Context, who model.Identity, recordID int64) error {
	st, err := s.student(ctx, who)
	if err != nil {
		return err
	}

	n, err := s.r.MarkReturnRequested(ctx, recordID, st.ID)
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	// Zero rows: work out which precondition failed for a precise code.
	var rec *model.BorrowRecord
	err = s.r.WithTx(ctx, func(tx *sql.Tx) error {
		var err error
		rec, err = s.r.GetForUpdate(ctx, tx, recordID)
		return err
	})
	if err != nil {
		if errors.Is(err, borrowrepo.ErrNotFound) {
			return makeErr(ErrNotFound)
		}
		return err
	}
	if rec.StudentID != st.ID {
		return makeErr(ErrNotOwner)
	}
	return makeErr(ErrNotBorrowed)
}

func (s *service) ApproveReturn(ctx context.Context, recordID int64) error {
	return s.r.WithTx(ctx, func(tx *sql.Tx) error {
		rec, err := s.r.GetForUpdate(ctx, tx, recordID)
		if err != nil {
			if errors.Is(err, borrowrepo.ErrNotFound) {
				return makeErr(ErrNotFound)
			}
			return err
		}
		if !rec.Status.CanTransitionTo(model.Returned) {
			return makeErr(ErrNotRequested)
		}

		n, err := s.r.MarkReturned(ctx, tx, recordID, s.now().UTC())
		if err != nil {
			return err
		}
		if n == 0 {
			return makeErr(ErrNotRequested)
		}
		return s.r.IncrementAvailable(ctx, tx, rec.BookID)
	})
}

func (s *service) RequestBorrow(ctx context.Context, who model.Identity, bookID int64) (*model.BorrowRecord, error) {
	st, err := s.student(ctx, who)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	rec := &model.BorrowRecord{
		StudentID:  st.ID,
		BookID:     bookID,
		BorrowedAt: now,
		DueAt:      now.Add(model.LoanPeriod),
		Status:     model.BorrowPending,
	}
	if err := s.r.InsertPending(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *service) ApproveRequest(ctx context.Context, recordID int64) error {
	return s.setOutcome(ctx, recordID, model.BorrowApproved)
}

func (s *service) RejectRequest(ctx context.Context, recordID int64) error {
	return s.setOutcome(ctx, recordID, model.BorrowRejected)
}

func (s *service) setOutcome(ctx context.Context, recordID int64, to model.BorrowStatus) error {
	if !model.BorrowPending.CanTransitionTo(to) {
		return makeErr(ErrNotPending)
	}
	n, err := s.r.SetRequestOutcome(ctx, recordID, to)
	if err != nil {
		return err
	}
	if n == 0 {
		return makeErr(ErrNotPending)
	}
	return nil
}

func (s *service) MyLoans(ctx context.Context, who model.Identity) ([]Detail, error) {
	st, err := s.student(ctx, who)
	if err != nil {
		return nil, err
	}
	out, err := s.r.ListByStudent(ctx, st.ID)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	for i := range out {
		if out[i].ReturnedAt == nil {
			out[i].FineCents = FineCents(out[i].DueAt, nil, now)
		}
	}
	return out, nil
}

func (s *service) Loans(ctx context.Context, f ListFilter) ([]Detail, error) {
	out, err := s.r.List(ctx, f)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	for i := range out {
		if out[i].ReturnedAt == nil {
			out[i].FineCents = FineCents(out[i].DueAt, nil, now)
		}
	}
	return out, nil
}

func (s *service) SweepOverdue(ctx context.Context) (int64, error) {
	return s.r.MarkOverdue(ctx, s.now().UTC())
}
