package authrepo

import (
	"context"
	"database/sql"

	"unilib/model"
)

type Repo interface {
	// Create inserts the auth account plus its role row (student or staff)
	// in one transaction.
	Create(ctx context.Context, u *model.User, student *model.Student, staff *model.Staff) error
	ByEmail(ctx context.Context, email string) (*model.User, error)
	ByID(ctx context.Context, id int64) (*model.User, error)
	UpdatePassword(ctx context.Context, userID int64, passwordHash string) error
	UpdatePhotoURL(ctx context.Context, userID int64, url string) error
}

type repo struct{ db *sql.DB }

func New(db *sql.DB) Repo { return &repo{db: db} }

func (r *repo) Create(ctx context.Context, u *model.User, student *model.Student, staff *model.Staff) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	err = tx.QueryRowContext(ctx, `
		INSERT INTO users(full_name, email, password_hash, role)
		VALUES ($1, lower($2), $3, $4)
		RETURNING id, created_at`,
		u.FullName, u.Email, u.PasswordHash, u.Role,
	).Scan(&u.ID, &u.CreatedAt)
	if err != nil {
		return err
	}

	switch {
	case student != nil:
		student.UserID = u.ID
		err = tx.QueryRowContext(ctx, `
			INSERT INTO students(user_id, name, email, department, enrollment_no)
			VALUES ($1, $2, lower($3), $4, $5)
			RETURNING id`,
			student.UserID, student.Name, student.Email, student.Department, student.EnrollmentNo,
		).Scan(&student.ID)
	case staff != nil:
		staff.UserID = u.ID
		err = tx.QueryRowContext(ctx, `
			INSERT INTO staff(user_id, name, email, title)
			VALUES ($1, $2, lower($3), $4)
			RETURNING id`,
			staff.UserID, staff.Name, staff.Email, staff.Title,
		).Scan(&staff.ID)
	}
	if err != nil {
		return err
	}
	return tx.Commit()
}

func (r *repo) ByEmail(ctx context.Context, email string) (*model.User, error) {
	u := &model.User{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, full_name, email, password_hash, role, COALESCE(photo_url,''), created_at
		FROM users
		WHERE lower(email) = lower($1)`,
		email,
	).Scan(&u.ID, &u.FullName, &u.Email, &u.PasswordHash, &u.Role, &u.PhotoURL, &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (r *repo) ByID(ctx context.Context, id int64) (*model.User, error) {
	u := &model.User{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, full_name, email, password_hash, role, COALESCE(photo_url,''), created_at
		FROM users
		WHERE id = $1`,
		id,
	).Scan(&u.ID, &u.FullName, &u.Email, &u.PasswordHash, &u.Role, &u.PhotoURL, &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (r *repo) UpdatePassword(ctx context.Context, userID int64, passwordHash string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET password_hash = $2 WHERE id = $1`,
		userID, passwordHash)
	return err
}

func (r *repo) UpdatePhotoURL(ctx context.Context, userID int64, url string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET photo_url = $2 WHERE id = $1`,
		userID, url)
	return err
}
