package analyticsrepo

import (
	"context"
	"database/sql"
)

type Stats struct {
	Books   int64 `json:"books"`
	Borrows int64 `json:"borrows"`
	Active  int64 `json:"active"`
	Overdue int64 `json:"overdue"`
}

type MonthCount struct {
	Label string `json:"label"` // e.g. "2026-03"
	Count int64  `json:"count"`
}

type TopBook struct {
	BookID int64  `json:"book_id"`
	Title  string `json:"title"`
	Count  int64  `json:"count"`
}

type Repo interface {
	Stats(ctx context.Context) (*Stats, error)
	BorrowsPerMonth(ctx context.Context, months int) ([]MonthCount, error)
	TopBorrowed(ctx context.Context, limit int) ([]TopBook, error)
}

type repo struct{ db *sql.DB }

func New(db *sql.DB) Repo { return &repo{db} }

func (r *repo) Stats(ctx context.Context) (*Stats, error) {
	const q = `
		SELECT
			(SELECT COUNT(*) FROM books),
			(SELECT COUNT(*) FROM borrow_records),
			(SELECT COUNT(*) FROM borrow_records WHERE status = 'borrowed'),
			(SELECT COUNT(*) FROM borrow_records WHERE status = 'overdue')`
	s := &Stats{}
	err := r.db.QueryRowContext(ctx, q).Scan(&s.Books, &s.Borrows, &s.Active, &s.Overdue)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (r *repo) BorrowsPerMonth(ctx context.Context, months int) ([]MonthCount, error) {
	const q = `
		SELECT to_char(date_trunc('month', m.month), 'YYYY-MM') AS label,
			COUNT(br.id)
		FROM generate_series(
			date_trunc('month', NOW()) - ($1 - 1) * INTERVAL '1 month',
			date_trunc('month', NOW()),
			INTERVAL '1 month') AS m(month)
		LEFT JOIN borrow_records br
			ON date_trunc('month', br.borrowed_at) = m.month
		GROUP BY m.month
		ORDER BY m.month`
	rows, err := r.db.QueryContext(ctx, q, months)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []MonthCount
	for rows.Next() {
		var mc MonthCount
		if err := rows.Scan(&mc.Label, &mc.Count); err != nil {
			return nil, err
		}
		out = append(out, mc)
	}
	return out, rows.Err()
}

func (r *repo) TopBorrowed(ctx context.Context, limit int) ([]TopBook, error) {
	const q = `
		SELECT b.id, b.title, COUNT(br.id) AS cnt
		FROM books b
		JOIN borrow_records br ON br.book_id = b.id
		GROUP BY b.id
		ORDER BY cnt DESC, b.id ASC
		LIMIT $1`
	rows, err := r.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TopBook
	for rows.Next() {
		var t TopBook
		if err := rows.Scan(&t.BookID, &t.Title, &t.Count); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
