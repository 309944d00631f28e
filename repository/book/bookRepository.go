package bookrepo

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"unilib/model"
)

// ErrNotFound is returned when a requested book does not exist.
var ErrNotFound = errors.New("book not found")

// ErrCopiesOnLoan is returned when an update would shrink total_copies below
// the number of copies currently out on loan.
var ErrCopiesOnLoan = errors.New("copies are out on loan")

type Repo interface {
	Create(ctx context.Context, b *model.Book) error
	Update(ctx context.Context, b *model.Book) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, category string) ([]model.Book, error)
	Search(ctx context.Context, query string) ([]model.Book, error)
	Detail(ctx context.Context, id int64) (*model.Book, error)
	Categories(ctx context.Context) ([]string, error)

	// RankedByCategories returns books in the given categories, excluding
	// the given ids, ordered by global borrow count descending (book id
	// ascending on ties).
	RankedByCategories(ctx context.Context, categories []string, excludeIDs []int64, limit int) ([]model.Book, error)
}

type repo struct{ db *sql.DB }

func New(db *sql.DB) Repo { return &repo{db} }

const bookCols = `id, title, author, COALESCE(isbn,''), category, COALESCE(description,''),
	COALESCE(cover_url,''), is_digital, COALESCE(digital_url,''),
	available_copies, total_copies, created_at`

func scanBook(row interface{ Scan(...any) error }, b *model.Book) error {
	return row.Scan(&b.ID, &b.Title, &b.Author, &b.ISBN, &b.Category, &b.Description,
		&b.CoverURL, &b.IsDigital, &b.DigitalURL,
		&b.AvailableCopies, &b.TotalCopies, &b.CreatedAt)
}

func (r *repo) Create(ctx context.Context, b *model.Book) error {
	const q = `
INSERT INTO books (title, author, isbn, category, description, cover_url,
	is_digital, digital_url, available_copies, total_copies)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$9)
RETURNING id, created_at`
	return r.db.QueryRowContext(ctx, q,
		b.Title, b.Author, b.ISBN, b.Category, b.Description, b.CoverURL,
		b.IsDigital, b.DigitalURL, b.TotalCopies,
	).Scan(&b.ID, &b.CreatedAt)
}

func (r *repo) Update(ctx context.Context, b *model.Book) error {
	// total_copies changes shift available_copies by the same delta so that
	// copies currently out on loan stay out. Guard keeps both non-negative.
	const q = `
UPDATE books
SET title=$2, author=$3, isbn=$4, category=$5, description=$6, cover_url=$7,
	is_digital=$8, digital_url=$9,
	available_copies = available_copies + ($10 - total_copies),
	total_copies = $10
WHERE id=$1 AND available_copies + ($10 - total_copies) >= 0`
	res, err := r.db.ExecContext(ctx, q,
		b.ID, b.Title, b.Author, b.ISBN, b.Category, b.Description, b.CoverURL,
		b.IsDigital, b.DigitalURL, b.TotalCopies)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// Zero rows is either a missing book or the guard refusing to drop
		// total_copies below what is out on loan. Tell them apart.
		var exists bool
		if err := r.db.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM books WHERE id=$1)`, b.ID).Scan(&exists); err != nil {
			return err
		}
		if exists {
			return ErrCopiesOnLoan
		}
		return ErrNotFound
	}
	return nil
}

func (r *repo) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM books WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repo) List(ctx context.Context, category string) ([]model.Book, error) {
	q := `SELECT ` + bookCols + ` FROM books`
	args := []any{}
	if category != "" {
		q += ` WHERE category = $1`
		args = append(args, category)
	}
	q += ` ORDER BY title ASC`
	return r.queryBooks(ctx, q, args...)
}

func (r *repo) Search(ctx context.Context, query string) ([]model.Book, error) {
	const q = `
SELECT ` + bookCols + `
FROM books
WHERE title ILIKE $1 OR author ILIKE $1 OR COALESCE(isbn,'') ILIKE $1 OR category ILIKE $1
ORDER BY title ASC`
	pattern := "%" + strings.TrimSpace(query) + "%"
	return r.queryBooks(ctx, q, pattern)
}

func (r *repo) Detail(ctx context.Context, id int64) (*model.Book, error) {
	var b model.Book
	err := scanBook(r.db.QueryRowContext(ctx,
		`SELECT `+bookCols+` FROM books WHERE id=$1`, id), &b)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *repo) Categories(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT DISTINCT category FROM books ORDER BY category`)
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

func (r *repo) RankedByCategories(ctx context.Context, categories []string, excludeIDs []int64, limit int) ([]model.Book, error) {
	if len(categories) == 0 {
		return nil, nil
	}
	const q = `
SELECT b.id, b.title, b.author, COALESCE(b.isbn,''), b.category, COALESCE(b.description,''),
	COALESCE(b.cover_url,''), b.is_digital, COALESCE(b.digital_url,''),
	b.available_copies, b.total_copies, b.created_at
FROM books b
LEFT JOIN borrow_records br ON br.book_id = b.id
WHERE b.category = ANY($1)
  AND NOT (b.id = ANY($2))
GROUP BY b.id
ORDER BY COUNT(br.id) DESC, b.id ASC
LIMIT $3`
	if excludeIDs == nil {
		excludeIDs = []int64{}
	}
	return r.queryBooks(ctx, q, categories, excludeIDs, limit)
}

func (r *repo) queryBooks(ctx context.Context, q string, args ...any) ([]model.Book, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Book
	for rows.Next() {
		var b model.Book
		if err := scanBook(rows, &b); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
