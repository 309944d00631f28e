// service/borrow/borrow_service_test.go
package borrowsvc

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"unilib/model"
	borrowrepo "unilib/repository/borrow"

	"github.com/stretchr/testify/require"
)

type mockRepo struct {
	studentByEmailFn      func(ctx context.Context, email string) (*model.Student, error)
	lockStudentFn         func(ctx context.Context, tx *sql.Tx, studentID int64) error
	countUnreturnedFn     func(ctx context.Context, tx *sql.Tx, studentID int64) (int64, error)
	hasUnreturnedFn       func(ctx context.Context, tx *sql.Tx, studentID, bookID int64) (bool, error)
	decrementAvailableFn  func(ctx context.Context, tx *sql.Tx, bookID int64) (bool, error)
	insertRecordFn        func(ctx context.Context, tx *sql.Tx, rec *model.BorrowRecord) error
	markReturnRequestedFn func(ctx context.Context, recordID, studentID int64) (int64, error)
	getForUpdateFn        func(ctx context.Context, tx *sql.Tx, recordID int64) (*model.BorrowRecord, error)
	markReturnedFn        func(ctx context.Context, tx *sql.Tx, recordID int64, returnedAt time.Time) (int64, error)
	incrementAvailableFn  func(ctx context.Context, tx *sql.Tx, bookID int64) error
	insertPendingFn       func(ctx context.Context, rec *model.BorrowRecord) error
	setRequestOutcomeFn   func(ctx context.Context, recordID int64, to model.BorrowStatus) (int64, error)
	listByStudentFn       func(ctx context.Context, studentID int64) ([]Detail, error)
	listFn                func(ctx context.Context, f ListFilter) ([]Detail, error)
	markOverdueFn         func(ctx context.Context, now time.Time) (int64, error)
	withTxFn              func(ctx context.Context, fn func(tx *sql.Tx) error) error
}

var _ Repo = (*mockRepo)(nil)

func (m *mockRepo) StudentByEmail(ctx context.Context, email string) (*model.Student, error) {
	if m.studentByEmailFn == nil {
		return &model.Student{ID: 1, UserID: 1}, nil
	}
	return m.studentByEmailFn(ctx, email)
}

func (m *mockRepo) LockStudent(ctx context.Context, tx *sql.Tx, studentID int64) error {
	if m.lockStudentFn == nil {
		return nil
	}
	return m.lockStudentFn(ctx, tx, studentID)
}

func (m *mockRepo) CountUnreturned(ctx context.Context, tx *sql.Tx, studentID int64) (int64, error) {
	if m.countUnreturnedFn == nil {
		return 0, nil
	}
	return m.countUnreturnedFn(ctx, tx, studentID)
}

func (m *mockRepo) HasUnreturned(ctx context.Context, tx *sql.Tx, studentID, bookID int64) (bool, error) {
	if m.hasUnreturnedFn == nil {
		return false, nil
	}
	return m.hasUnreturnedFn(ctx, tx, studentID, bookID)
}

func (m *mockRepo) DecrementAvailable(ctx context.Context, tx *sql.Tx, bookID int64) (bool, error) {
	if m.decrementAvailableFn == nil {
		return true, nil
	}
	return m.decrementAvailableFn(ctx, tx, bookID)
}

func (m *mockRepo) InsertRecord(ctx context.Context, tx *sql.Tx, rec *model.BorrowRecord) error {
	if m.insertRecordFn == nil {
		rec.ID = 1
		return nil
	}
	return m.insertRecordFn(ctx, tx, rec)
}

func (m *mockRepo) MarkReturnRequested(ctx context.Context, recordID, studentID int64) (int64, error) {
	if m.markReturnRequestedFn == nil {
		return 1, nil
	}
	return m.markReturnRequestedFn(ctx, recordID, studentID)
}

func (m *mockRepo) GetForUpdate(ctx context.Context, tx *sql.Tx, recordID int64) (*model.BorrowRecord, error) {
	if m.getForUpdateFn == nil {
		return nil, borrowrepo.ErrNotFound
	}
	return m.getForUpdateFn(ctx, tx, recordID)
}

func (m *mockRepo) MarkReturned(ctx context.Context, tx *sql.Tx, recordID int64, returnedAt time.Time) (int64, error) {
	if m.markReturnedFn == nil {
		return 1, nil
	}
	return m.markReturnedFn(ctx, tx, recordID, returnedAt)
}

func (m *mockRepo) IncrementAvailable(ctx context.Context, tx *sql.Tx, bookID int64) error {
	if m.incrementAvailableFn == nil {
		return nil
	}
	return m.incrementAvailableFn(ctx, tx, bookID)
}

func (m *mockRepo) InsertPending(ctx context.Context, rec *model.BorrowRecord) error {
	if m.insertPendingFn == nil {
		rec.ID = 1
		return nil
	}
	return m.insertPendingFn(ctx, rec)
}

func (m *mockRepo) SetRequestOutcome(ctx context.Context, recordID int64, to model.BorrowStatus) (int64, error) {
	if m.setRequestOutcomeFn == nil {
		return 1, nil
	}
	return m.setRequestOutcomeFn(ctx, recordID, to)
}

func (m *mockRepo) ListByStudent(ctx context.Context, studentID int64) ([]Detail, error) {
	if m.listByStudentFn == nil {
		return nil, nil
	}
	return m.listByStudentFn(ctx, studentID)
}

func (m *mockRepo) List(ctx context.Context, f ListFilter) ([]Detail, error) {
	if m.listFn == nil {
		return nil, nil
	}
	return m.listFn(ctx, f)
}

func (m *mockRepo) MarkOverdue(ctx context.Context, now time.Time) (int64, error) {
	if m.markOverdueFn == nil {
		return 0, nil
	}
	return m.markOverdueFn(ctx, now)
}

func (m *mockRepo) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	if m.withTxFn == nil {
		return fn(nil)
	}
	return m.withTxFn(ctx, fn)
}

var student = model.Identity{UserID: 1, Email: "ana@campus.edu", Role: model.RoleStudent}

// --- tests ---

func TestBorrow_Success(t *testing.T) {
	ctx := context.Background()
	fixed := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	var inserted *model.BorrowRecord
	m := &mockRepo{
		insertRecordFn: func(ctx context.Context, tx *sql.Tx, rec *model.BorrowRecord) error {
			rec.ID = 77
			inserted = rec
			return nil
		},
	}
	svc := NewWithClock(m, func() time.Time { return fixed })

	rec, err := svc.Borrow(ctx, student, 5)
	require.NoError(t, err)
	require.NotNil(t, rec)
	require.Equal(t, int64(77), rec.ID)
	require.Equal(t, int64(5), rec.BookID)
	require.Equal(t, model.Borrowed, rec.Status)
	require.Equal(t, fixed, rec.BorrowedAt)
	require.Equal(t, fixed.Add(model.LoanPeriod), rec.DueAt)
	require.Same(t, rec, inserted)
}

func TestBorrow_NotStudent(t *testing.T) {
	svc := New(&mockRepo{})
	staff := model.Identity{UserID: 2, Email: "ops@campus.edu", Role: model.RoleStaff}

	_, err := svc.Borrow(context.Background(), staff, 5)
	require.Error(t, err)
	require.Equal(t, ErrNotStudent, Code(err))
}

func TestBorrow_DuplicateCopy(t *testing.T) {
	m := &mockRepo{
		hasUnreturnedFn: func(ctx context.Context, tx *sql.Tx, studentID, bookID int64) (bool, error) {
			return true, nil
		},
		decrementAvailableFn: func(ctx context.Context, tx *sql.Tx, bookID int64) (bool, error) {
			t.Fatal("must not touch copy counts on a duplicate")
			return false, nil
		},
	}
	svc := New(m)

	_, err := svc.Borrow(context.Background(), student, 5)
	require.Error(t, err)
	require.Equal(t, ErrAlreadyBorrowed, Code(err))
}

func TestBorrow_LimitReached(t *testing.T) {
	m := &mockRepo{
		countUnreturnedFn: func(ctx context.Context, tx *sql.Tx, studentID int64) (int64, error) {
			return model.MaxConcurrentBorrows, nil
		},
	}
	svc := New(m)

	_, err := svc.Borrow(context.Background(), student, 5)
	require.Error(t, err)
	require.Equal(t, ErrBorrowLimit, Code(err))
}

func TestBorrow_UnderLimit(t *testing.T) {
	m := &mockRepo{
		countUnreturnedFn: func(ctx context.Context, tx *sql.Tx, studentID int64) (int64, error) {
			return model.MaxConcurrentBorrows - 1, nil
		},
	}
	svc := New(m)

	rec, err := svc.Borrow(context.Background(), student, 5)
	require.NoError(t, err)
	require.NotNil(t, rec)
}

func TestBorrow_NoCopyLeft(t *testing.T) {
	m := &mockRepo{
		decrementAvailableFn: func(ctx context.Context, tx *sql.Tx, bookID int64) (bool, error) {
			return false, nil
		},
		insertRecordFn: func(ctx context.Context, tx *sql.Tx, rec *model.BorrowRecord) error {
			t.Fatal("must not insert a record without a copy")
			return nil
		},
	}
	svc := New(m)

	_, err := svc.Borrow(context.Background(), student, 5)
	require.Error(t, err)
	require.Equal(t, ErrBookUnavailable, Code(err))
}

func TestBorrow_LocksStudentBeforeCounting(t *testing.T) {
	var calls []string
	m := &mockRepo{
		lockStudentFn: func(ctx context.Context, tx *sql.Tx, studentID int64) error {
			calls = append(calls, "lock")
			return nil
		},
		hasUnreturnedFn: func(ctx context.Context, tx *sql.Tx, studentID, bookID int64) (bool, error) {
			calls = append(calls, "dup")
			return false, nil
		},
		countUnreturnedFn: func(ctx context.Context, tx *sql.Tx, studentID int64) (int64, error) {
			calls = append(calls, "count")
			return 0, nil
		},
	}
	svc := New(m)

	_, err := svc.Borrow(context.Background(), student, 5)
	require.NoError(t, err)
	require.Equal(t, []string{"lock", "dup", "count"}, calls)
}

// Two simultaneous borrows by a student holding 3 loans: the student row
// lock makes the second transaction wait and see the first one's insert, so
// only one can pass the limit check.
func TestBorrow_ConcurrentBorrowsCannotExceedLimit(t *testing.T) {
	var mu sync.Mutex
	unreturned := int64(model.MaxConcurrentBorrows - 1)

	m := &mockRepo{
		lockStudentFn: func(ctx context.Context, tx *sql.Tx, studentID int64) error {
			mu.Lock()
			return nil
		},
		countUnreturnedFn: func(ctx context.Context, tx *sql.Tx, studentID int64) (int64, error) {
			return unreturned, nil
		},
		insertRecordFn: func(ctx context.Context, tx *sql.Tx, rec *model.BorrowRecord) error {
			unreturned++
			return nil
		},
	}
	// Lock held until the transaction ends, as a row lock is.
	m.withTxFn = func(ctx context.Context, fn func(tx *sql.Tx) error) error {
		defer mu.Unlock()
		return fn(nil)
	}
	svc := New(m)

	errs := make(chan error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Borrow(context.Background(), student, 5)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var ok, limited int
	for err := range errs {
		switch {
		case err == nil:
			ok++
		case Code(err) == ErrBorrowLimit:
			limited++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	require.Equal(t, 1, ok)
	require.Equal(t, 1, limited)
	require.Equal(t, int64(model.MaxConcurrentBorrows), unreturned)
}

func TestBorrow_StudentRowMissing(t *testing.T) {
	m := &mockRepo{
		studentByEmailFn: func(ctx context.Context, email string) (*model.Student, error) {
			return nil, borrowrepo.ErrNotFound
		},
	}
	svc := New(m)

	_, err := svc.Borrow(context.Background(), student, 5)
	require.Error(t, err)
	require.Equal(t, ErrStudentNotFound, Code(err))
}

func TestRequestReturn_Success(t *testing.T) {
	var gotRecord, gotStudent int64
	m := &mockRepo{
		markReturnRequestedFn: func(ctx context.Context, recordID, studentID int64) (int64, error) {
			gotRecord, gotStudent = recordID, studentID
			return 1, nil
		},
	}
	svc := New(m)

	require.NoError(t, svc.RequestReturn(context.Background(), student, 9))
	require.Equal(t, int64(9), gotRecord)
	require.Equal(t, int64(1), gotStudent)
}

func TestRequestReturn_NotFound(t *testing.T) {
	m := &mockRepo{
		markReturnRequestedFn: func(ctx context.Context, recordID, studentID int64) (int64, error) {
			return 0, nil
		},
	}
	svc := New(m)

	err := svc.RequestReturn(context.Background(), student, 9)
	require.Error(t, err)
	require.Equal(t, ErrNotFound, Code(err))
}

func TestRequestReturn_NotOwner(t *testing.T) {
	m := &mockRepo{
		markReturnRequestedFn: func(ctx context.Context, recordID, studentID int64) (int64, error) {
			return 0, nil
		},
		getForUpdateFn: func(ctx context.Context, tx *sql.Tx, recordID int64) (*model.BorrowRecord, error) {
			return &model.BorrowRecord{ID: recordID, StudentID: 99, Status: model.Borrowed}, nil
		},
	}
	svc := New(m)

	err := svc.RequestReturn(context.Background(), student, 9)
	require.Error(t, err)
	require.Equal(t, ErrNotOwner, Code(err))
}

func TestRequestReturn_AlreadyReturned(t *testing.T) {
	m := &mockRepo{
		markReturnRequestedFn: func(ctx context.Context, recordID, studentID int64) (int64, error) {
			return 0, nil
		},
		getForUpdateFn: func(ctx context.Context, tx *sql.Tx, recordID int64) (*model.BorrowRecord, error) {
			return &model.BorrowRecord{ID: recordID, StudentID: 1, Status: model.Returned}, nil
		},
	}
	svc := New(m)

	err := svc.RequestReturn(context.Background(), student, 9)
	require.Error(t, err)
	require.Equal(t, ErrNotBorrowed, Code(err))
}

func TestApproveReturn_Success(t *testing.T) {
	incremented := int64(0)
	m := &mockRepo{
		getForUpdateFn: func(ctx context.Context, tx *sql.Tx, recordID int64) (*model.BorrowRecord, error) {
			return &model.BorrowRecord{ID: recordID, StudentID: 1, BookID: 5, Status: model.ReturnRequested}, nil
		},
		incrementAvailableFn: func(ctx context.Context, tx *sql.Tx, bookID int64) error {
			incremented = bookID
			return nil
		},
	}
	svc := New(m)

	require.NoError(t, svc.ApproveReturn(context.Background(), 9))
	require.Equal(t, int64(5), incremented)
}

func TestApproveReturn_NotRequested(t *testing.T) {
	m := &mockRepo{
		getForUpdateFn: func(ctx context.Context, tx *sql.Tx, recordID int64) (*model.BorrowRecord, error) {
			return &model.BorrowRecord{ID: recordID, StudentID: 1, BookID: 5, Status: model.Borrowed}, nil
		},
	}
	svc := New(m)

	err := svc.ApproveReturn(context.Background(), 9)
	require.Error(t, err)
	require.Equal(t, ErrNotRequested, Code(err))
}

// A second approval of the same record must not free a second copy.
func TestApproveReturn_Idempotent(t *testing.T) {
	increments := 0
	returned := false
	m := &mockRepo{
		getForUpdateFn: func(ctx context.Context, tx *sql.Tx, recordID int64) (*model.BorrowRecord, error) {
			st := model.ReturnRequested
			if returned {
				st = model.Returned
			}
			return &model.BorrowRecord{ID: recordID, StudentID: 1, BookID: 5, Status: st}, nil
		},
		markReturnedFn: func(ctx context.Context, tx *sql.Tx, recordID int64, returnedAt time.Time) (int64, error) {
			if returned {
				return 0, nil
			}
			returned = true
			return 1, nil
		},
		incrementAvailableFn: func(ctx context.Context, tx *sql.Tx, bookID int64) error {
			increments++
			return nil
		},
	}
	svc := New(m)

	require.NoError(t, svc.ApproveReturn(context.Background(), 9))

	err := svc.ApproveReturn(context.Background(), 9)
	require.Error(t, err)
	require.Equal(t, ErrNotRequested, Code(err))
	require.Equal(t, 1, increments)
}

func TestApproveReturn_NotFound(t *testing.T) {
	svc := New(&mockRepo{})

	err := svc.ApproveReturn(context.Background(), 404)
	require.Error(t, err)
	require.Equal(t, ErrNotFound, Code(err))
}

func TestRequestBorrow_Pending(t *testing.T) {
	fixed := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	m := &mockRepo{
		decrementAvailableFn: func(ctx context.Context, tx *sql.Tx, bookID int64) (bool, error) {
			t.Fatal("a pending request must not move copies")
			return false, nil
		},
	}
	svc := NewWithClock(m, func() time.Time { return fixed })

	rec, err := svc.RequestBorrow(context.Background(), student, 5)
	require.NoError(t, err)
	require.Equal(t, model.BorrowPending, rec.Status)
	require.Equal(t, fixed.Add(model.LoanPeriod), rec.DueAt)
}

func TestApproveRequest_NotPending(t *testing.T) {
	m := &mockRepo{
		setRequestOutcomeFn: func(ctx context.Context, recordID int64, to model.BorrowStatus) (int64, error) {
			return 0, nil
		},
	}
	svc := New(m)

	err := svc.ApproveRequest(context.Background(), 9)
	require.Error(t, err)
	require.Equal(t, ErrNotPending, Code(err))
}

func TestRejectRequest_Success(t *testing.T) {
	var gotStatus model.BorrowStatus
	m := &mockRepo{
		setRequestOutcomeFn: func(ctx context.Context, recordID int64, to model.BorrowStatus) (int64, error) {
			gotStatus = to
			return 1, nil
		},
	}
	svc := New(m)

	require.NoError(t, svc.RejectRequest(context.Background(), 9))
	require.Equal(t, model.BorrowRejected, gotStatus)
}

func TestMyLoans_FinesOnlyOnOpenLoans(t *testing.T) {
	now := time.Date(2024, 3, 20, 0, 0, 0, 0, time.UTC)
	due := now.Add(-10 * 24 * time.Hour)
	ret := due.Add(24 * time.Hour)

	m := &mockRepo{
		listByStudentFn: func(ctx context.Context, studentID int64) ([]Detail, error) {
			return []Detail{
				{ID: 1, Status: model.Overdue, DueAt: due},
				{ID: 2, Status: model.Returned, DueAt: due, ReturnedAt: &ret},
			}, nil
		},
	}
	svc := NewWithClock(m, func() time.Time { return now })

	out, err := svc.MyLoans(context.Background(), student)
	require.NoError(t, err)
	require.Len(t, out, 2)
	require.Equal(t, int64(10*FineCentsPerDay), out[0].FineCents)
	require.Zero(t, out[1].FineCents)
}

func TestLoans_PassesFilter(t *testing.T) {
	var got ListFilter
	m := &mockRepo{
		listFn: func(ctx context.Context, f ListFilter) ([]Detail, error) {
			got = f
			return nil, nil
		},
	}
	svc := New(m)

	_, err := svc.Loans(context.Background(), ListFilter{StudentID: 3, Status: model.Overdue})
	require.NoError(t, err)
	require.Equal(t, int64(3), got.StudentID)
	require.Equal(t, model.Overdue, got.Status)
}

func TestSweepOverdue(t *testing.T) {
	m := &mockRepo{
		markOverdueFn: func(ctx context.Context, now time.Time) (int64, error) { return 3, nil },
	}
	svc := New(m)

	n, err := svc.SweepOverdue(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(3), n)
}

// Full lifecycle against one shared copy: the second borrower is turned away,
// the return round-trips through staff approval, and the copy comes back.
func TestBorrowLifecycle_SingleCopy(t *testing.T) {
	ctx := context.Background()
	available := int64(1)
	var rec *model.BorrowRecord

	m := &mockRepo{
		studentByEmailFn: func(ctx context.Context, email string) (*model.Student, error) {
			if email == "x@campus.edu" {
				return &model.Student{ID: 1}, nil
			}
			return &model.Student{ID: 2}, nil
		},
		decrementAvailableFn: func(ctx context.Context, tx *sql.Tx, bookID int64) (bool, error) {
			if available == 0 {
				return false, nil
			}
			available--
			return true, nil
		},
		incrementAvailableFn: func(ctx context.Context, tx *sql.Tx, bookID int64) error {
			available++
			return nil
		},
		insertRecordFn: func(ctx context.Context, tx *sql.Tx, r *model.BorrowRecord) error {
			r.ID = 10
			rec = r
			return nil
		},
		markReturnRequestedFn: func(ctx context.Context, recordID, studentID int64) (int64, error) {
			if rec == nil || rec.ID != recordID || rec.StudentID != studentID || !rec.Status.CanTransitionTo(model.ReturnRequested) {
				return 0, nil
			}
			rec.Status = model.ReturnRequested
			return 1, nil
		},
		getForUpdateFn: func(ctx context.Context, tx *sql.Tx, recordID int64) (*model.BorrowRecord, error) {
			if rec == nil || rec.ID != recordID {
				return nil, borrowrepo.ErrNotFound
			}
			return rec, nil
		},
		markReturnedFn: func(ctx context.Context, tx *sql.Tx, recordID int64, returnedAt time.Time) (int64, error) {
			if rec.Status != model.ReturnRequested {
				return 0, nil
			}
			rec.Status = model.Returned
			rec.ReturnedAt = &returnedAt
			return 1, nil
		},
	}
	svc := New(m)

	x := model.Identity{UserID: 1, Email: "x@campus.edu", Role: model.RoleStudent}
	y := model.Identity{UserID: 2, Email: "y@campus.edu", Role: model.RoleStudent}

	// X takes the only copy.
	got, err := svc.Borrow(ctx, x, 1)
	require.NoError(t, err)
	require.Equal(t, model.Borrowed, got.Status)
	require.Equal(t, int64(0), available)

	// Y is turned away.
	_, err = svc.Borrow(ctx, y, 1)
	require.Equal(t, ErrBookUnavailable, Code(err))
	require.Equal(t, int64(0), available)

	// X requests the return; staff approves; the copy is freed exactly once.
	require.NoError(t, svc.RequestReturn(ctx, x, got.ID))
	require.NoError(t, svc.ApproveReturn(ctx, got.ID))
	require.Equal(t, model.Returned, rec.Status)
	require.NotNil(t, rec.ReturnedAt)
	require.Equal(t, int64(1), available)

	err = svc.ApproveReturn(ctx, got.ID)
	require.Equal(t, ErrNotRequested, Code(err))
	require.Equal(t, int64(1), available)
}

func TestCodeExtractor(t *testing.T) {
	require.Equal(t, ErrBookUnavailable, Code(makeErr(ErrBookUnavailable)))
	require.Equal(t, ErrCode(""), Code(errors.New("plain")))
}
