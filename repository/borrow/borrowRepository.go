// repository/borrow/repo.go
package borrowrepo

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"time"

	"unilib/model"
)

// ErrNotFound is returned when a borrow record or student row is missing.
var ErrNotFound = errors.New("not found")

// Detail is the normalized view of a borrow record joined with its book and
// student. Join shapes are flattened here once, never at call sites.
type Detail struct {
	ID           int64               `json:"id"`
	Status       model.BorrowStatus  `json:"status"`
	BorrowedAt   time.Time           `json:"borrowed_at"`
	DueAt        time.Time           `json:"due_at"`
	ReturnedAt   *time.Time          `json:"returned_at,omitempty"`
	BookID       int64               `json:"book_id"`
	BookTitle    string              `json:"book_title"`
	BookAuthor   string              `json:"book_author"`
	BookCategory string              `json:"book_category"`
	BookCoverURL string              `json:"book_cover_url,omitempty"`
	StudentID    int64               `json:"student_id"`
	StudentName  string              `json:"student_name"`
	StudentEmail string              `json:"student_email"`
	FineCents    int64               `json:"fine_cents"`
}

// ListFilter narrows the staff borrow-history listing.
type ListFilter struct {
	StudentID int64
	BookID    int64
	Status    model.BorrowStatus
	From      time.Time
	To        time.Time
}

type Repo interface {
	StudentByEmail(ctx context.Context, email string) (*model.Student, error)

	// Borrow-time steps, all inside the caller's transaction. LockStudent
	// comes first: it serializes concurrent borrows by the same student so
	// the duplicate and limit counts cannot read a stale snapshot.
	LockStudent(ctx context.Context, tx *sql.Tx, studentID int64) error
	CountUnreturned(ctx context.Context, tx *sql.Tx, studentID int64) (int64, error)
	HasUnreturned(ctx context.Context, tx *sql.Tx, studentID, bookID int64) (bool, error)
	DecrementAvailable(ctx context.Context, tx *sql.Tx, bookID int64) (bool, error)
	InsertRecord(ctx context.Context, tx *sql.Tx, rec *model.BorrowRecord) error

	// Return workflow.
	MarkReturnRequested(ctx context.Context, recordID, studentID int64) (int64, error)
	GetForUpdate(ctx context.Context, tx *sql.Tx, recordID int64) (*model.BorrowRecord, error)
	MarkReturned(ctx context.Context, tx *sql.Tx, recordID int64, returnedAt time.Time) (int64, error)
	IncrementAvailable(ctx context.Context, tx *sql.Tx, bookID int64) error

	// Pending-request workflow; copy counts are never touched here.
	InsertPending(ctx context.Context, rec *model.BorrowRecord) error
	SetRequestOutcome(ctx context.Context, recordID int64, to model.BorrowStatus) (int64, error)

	// Listings and maintenance.
	ListByStudent(ctx context.Context, studentID int64) ([]Detail, error)
	List(ctx context.Context, f ListFilter) ([]Detail, error)
	MarkOverdue(ctx context.Context, now time.Time) (int64, error)

	// Recommendation inputs.
	CategoriesBorrowed(ctx context.Context, studentID int64) ([]string, error)
	BorrowedBookIDs(ctx context.Context, studentID int64) ([]int64, error)

	// WithTx runs fn inside a transaction, rolling back on error.
	WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error
}

type repo struct{ db *sql.DB }

func New(db *sql.DB) Repo { return &repo{db: db} }

func (r *repo) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	if err = fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *repo) StudentByEmail(ctx context.Context, email string) (*model.Student, error) {
	s := &model.Student{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, name, email, COALESCE(department,''), COALESCE(enrollment_no,'')
		FROM students
		WHERE lower(email) = lower($1)`,
		email,
	).Scan(&s.ID, &s.UserID, &s.Name, &s.Email, &s.Department, &s.EnrollmentNo)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (r *repo) LockStudent(ctx context.Context, tx *sql.Tx, studentID int64) error {
	const q = `
		SELECT id
		FROM students
		WHERE id = $1
		FOR UPDATE`
	var id int64
	err := tx.QueryRowContext(ctx, q, studentID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func (r *repo) CountUnreturned(ctx context.Context, tx *sql.Tx, studentID int64) (int64, error) {
	const q = `
		SELECT COUNT(*)
		FROM borrow_records
		WHERE student_id = $1
		AND status IN ('borrowed','return_requested','overdue')`
	var n int64
	err := tx.QueryRowContext(ctx, q, studentID).Scan(&n)
	return n, err
}

func (r *repo) HasUnreturned(ctx context.Context, tx *sql.Tx, studentID, bookID int64) (bool, error) {
	const q = `
		SELECT EXISTS (
			SELECT 1 FROM borrow_records
			WHERE student_id = $1 AND book_id = $2 AND returned_at IS NULL
			AND status IN ('borrowed','return_requested','overdue')
		)`
	var ok bool
	err := tx.QueryRowContext(ctx, q, studentID, bookID).Scan(&ok)
	return ok, err
}

// DecrementAvailable is the atomic check-and-take: zero rows means no copy
// was available and nothing changed.
func (r *repo) DecrementAvailable(ctx context.Context, tx *sql.Tx, bookID int64) (bool, error) {
	const q = `
		UPDATE books
		SET available_copies = available_copies - 1
		WHERE id = $1
		AND available_copies > 0`
	res, err := tx.ExecContext(ctx, q, bookID)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (r *repo) InsertRecord(ctx context.Context, tx *sql.Tx, rec *model.BorrowRecord) error {
	const q = `
		INSERT INTO borrow_records (student_id, book_id, borrowed_at, due_at, status)
		VALUES ($1,$2,$3,$4,$5)
		RETURNING id`
	return tx.QueryRowContext(ctx, q,
		rec.StudentID, rec.BookID, rec.BorrowedAt, rec.DueAt, rec.Status,
	).Scan(&rec.ID)
}

func (r *repo) MarkReturnRequested(ctx context.Context, recordID, studentID int64) (int64, error) {
	const q = `
		UPDATE borrow_records
		SET status = 'return_requested'
		WHERE id = $1
		AND student_id = $2
		AND status IN ('borrowed','overdue')`
	res, err := r.db.ExecContext(ctx, q, recordID, studentID)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func (r *repo) GetForUpdate(ctx context.Context, tx *sql.Tx, recordID int64) (*model.BorrowRecord, error) {
	const q = `
		SELECT id, student_id, book_id, borrowed_at, due_at, returned_at, status
		FROM borrow_records
		WHERE id = $1
		FOR UPDATE`
	rec := &model.BorrowRecord{}
	err := tx.QueryRowContext(ctx, q, recordID).Scan(
		&rec.ID, &rec.StudentID, &rec.BookID, &rec.BorrowedAt, &rec.DueAt, &rec.ReturnedAt, &rec.Status)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// MarkReturned only fires from return_requested, so a second approval of the
// same record affects zero rows.
func (r *repo) MarkReturned(ctx context.Context, tx *sql.Tx, recordID int64, returnedAt time.Time) (int64, error) {
	const q = `
		UPDATE borrow_records
		SET status = 'returned',
			returned_at = $2
		WHERE id = $1
		AND status = 'return_requested'`
	res, err := tx.ExecContext(ctx, q, recordID, returnedAt)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func (r *repo) IncrementAvailable(ctx context.Context, tx *sql.Tx, bookID int64) error {
	const q = `
		UPDATE books
		SET available_copies = available_copies + 1
		WHERE id = $1
		AND available_copies < total_copies`
	_, err := tx.ExecContext(ctx, q, bookID)
	return err
}

func (r *repo) InsertPending(ctx context.Context, rec *model.BorrowRecord) error {
	const q = `
		INSERT INTO borrow_records (student_id, book_id, borrowed_at, due_at, status)
		VALUES ($1,$2,$3,$4,'pending')
		RETURNING id`
	return r.db.QueryRowContext(ctx, q,
		rec.StudentID, rec.BookID, rec.BorrowedAt, rec.DueAt,
	).Scan(&rec.ID)
}

func (r *repo) SetRequestOutcome(ctx context.Context, recordID int64, to model.BorrowStatus) (int64, error) {
	const q = `
		UPDATE borrow_records
		SET status = $2
		WHERE id = $1
		AND status = 'pending'`
	res, err := r.db.ExecContext(ctx, q, recordID, to)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return n, nil
}

const detailCols = `
	br.id, br.status, br.borrowed_at, br.due_at, br.returned_at,
	b.id, b.title, b.author, b.category, COALESCE(b.cover_url,''),
	s.id, s.name, s.email`

func scanDetail(rows *sql.Rows, d *Detail) error {
	return rows.Scan(
		&d.ID, &d.Status, &d.BorrowedAt, &d.DueAt, &d.ReturnedAt,
		&d.BookID, &d.BookTitle, &d.BookAuthor, &d.BookCategory, &d.BookCoverURL,
		&d.StudentID, &d.StudentName, &d.StudentEmail)
}

func (r *repo) ListByStudent(ctx context.Context, studentID int64) ([]Detail, error) {
	const q = `
		SELECT` + detailCols + `
		FROM borrow_records br
		JOIN books b ON b.id = br.book_id
		JOIN students s ON s.id = br.student_id
		WHERE br.student_id = $1
		ORDER BY br.borrowed_at DESC, br.id DESC`
	return r.queryDetails(ctx, q, studentID)
}

func (r *repo) List(ctx context.Context, f ListFilter) ([]Detail, error) {
	q := `
		SELECT` + detailCols + `
		FROM borrow_records br
		JOIN books b ON b.id = br.book_id
		JOIN students s ON s.id = br.student_id
		WHERE 1=1`
	args := []any{}
	add := func(clause string, v any) {
		args = append(args, v)
		q += clause + "$" + strconv.Itoa(len(args))
	}
	if f.StudentID > 0 {
		add(` AND br.student_id = `, f.StudentID)
	}
	if f.BookID > 0 {
		add(` AND br.book_id = `, f.BookID)
	}
	if f.Status != "" {
		add(` AND br.status = `, f.Status)
	}
	if !f.From.IsZero() {
		add(` AND br.borrowed_at >= `, f.From)
	}
	if !f.To.IsZero() {
		add(` AND br.borrowed_at <= `, f.To)
	}
	q += ` ORDER BY br.borrowed_at DESC, br.id DESC`
	return r.queryDetails(ctx, q, args...)
}

func (r *repo) MarkOverdue(ctx context.Context, now time.Time) (int64, error) {
	const q = `
		UPDATE borrow_records
		SET status = 'overdue'
		WHERE status = 'borrowed'
		AND due_at < $1`
	res, err := r.db.ExecContext(ctx, q, now)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func (r *repo) CategoriesBorrowed(ctx context.Context, studentID int64) ([]string, error) {
	const q = `
		SELECT DISTINCT b.category
		FROM borrow_records br
		JOIN books b ON b.id = br.book_id
		WHERE br.student_id = $1
		ORDER BY b.category`
	rows, err := r.db.QueryContext(ctx, q, studentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *repo) BorrowedBookIDs(ctx context.Context, studentID int64) ([]int64, error) {
	const q = `
		SELECT DISTINCT book_id
		FROM borrow_records
		WHERE student_id = $1`
	rows, err := r.db.QueryContext(ctx, q, studentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (r *repo) queryDetails(ctx context.Context, q string, args ...any) ([]Detail, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Detail
	for rows.Next() {
		var d Detail
		if err := scanDetail(rows, &d); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
