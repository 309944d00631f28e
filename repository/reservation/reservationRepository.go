package reservationrepo

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"unilib/model"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrDuplicate is returned when an active reservation already exists for the
// (user, book) pair. Enforced by the storage layer's unique index, not by a
// racy in-process check.
var ErrDuplicate = errors.New("active reservation already exists")

// ErrBookNotFound is returned when the reserved book does not exist.
var ErrBookNotFound = errors.New("book not found")

// View is a reservation joined with its book.
type View struct {
	ID        int64                   `json:"id"`
	BookID    int64                   `json:"book_id"`
	BookTitle string                  `json:"book_title"`
	Status    model.ReservationStatus `json:"status"`
	CreatedAt time.Time               `json:"created_at"`
}

type Repo interface {
	// Create inserts a reservation whose status is decided by current
	// availability in the same statement: reserved when a copy is free,
	// waitlisted otherwise.
	Create(ctx context.Context, userID, bookID int64) (*model.Reservation, error)
	ListByUser(ctx context.Context, userID int64) ([]View, error)
}

type repo struct{ db *sql.DB }

func New(db *sql.DB) Repo { return &repo{db} }

func (r *repo) Create(ctx context.Context, userID, bookID int64) (*model.Reservation, error) {
	const q = `
		INSERT INTO reservations (user_id, book_id, status)
		SELECT $1, b.id,
			CASE WHEN b.available_copies > 0 THEN 'reserved' ELSE 'waitlisted' END
		FROM books b
		WHERE b.id = $2
		RETURNING id, status, created_at`
	res := &model.Reservation{UserID: userID, BookID: bookID}
	err := r.db.QueryRowContext(ctx, q, userID, bookID).Scan(&res.ID, &res.Status, &res.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBookNotFound
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return res, nil
}

func (r *repo) ListByUser(ctx context.Context, userID int64) ([]View, error) {
	const q = `
		SELECT r.id, r.book_id, b.title, r.status, r.created_at
		FROM reservations r
		JOIN books b ON b.id = r.book_id
		WHERE r.user_id = $1
		ORDER BY r.created_at DESC`
	rows, err := r.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []View
	for rows.Next() {
		var v View
		if err := rows.Scan(&v.ID, &v.BookID, &v.BookTitle, &v.Status, &v.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
