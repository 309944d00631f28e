package authsvc

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"strings"

	"unilib/model"
	authrepo "unilib/repository/auth"
	storagerepo "unilib/repository/storage"
	"unilib/util/hash"
	jwtutil "unilib/util/jwt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
)

type ErrCode string

const (
	ErrEmailTaken   ErrCode = "EMAIL_TAKEN"
	ErrBadInput     ErrCode = "BAD_INPUT"
	ErrInvalidCreds ErrCode = "INVALID_CREDENTIALS"
	ErrNotFound     ErrCode = "NOT_FOUND"
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

type Service interface {
	Register(ctx context.Context, req model.RegisterReq) (*model.User, string, error)
	Login(ctx context.Context, req model.LoginReq) (*model.User, string, error)
	UpdatePassword(ctx context.Context, who model.Identity, req model.UpdatePasswordReq) error
	UploadPhoto(ctx context.Context, who model.Identity, filename string, body io.Reader, contentType string) (string, error)
	Profile(ctx context.Context, who model.Identity) (*model.User, error)
}

type service struct {
	r      authrepo.Repo
	up     storagerepo.Uploader
	secret string
}

func New(r authrepo.Repo, up storagerepo.Uploader, secret string) Service {
	return &service{r: r, up: up, secret: secret}
}

func (s *service) Register(ctx context.Context, req model.RegisterReq) (*model.User, string, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	name := strings.TrimSpace(req.FullName)
	if email == "" || name == "" || len(req.Password) < 6 {
		return nil, "", makeErr(ErrBadInput)
	}

	hashed, err := hash.HashPassword(req.Password)
	if err != nil {
		return nil, "", err
	}

	u := &model.User{
		FullName:     name,
		Email:        email,
		PasswordHash: hashed,
		Role:         req.Role,
	}

	var student *model.Student
	var staff *model.Staff
	switch req.Role {
	case model.RoleStudent:
		student = &model.Student{Name: name, Email: email, Department: req.Department, EnrollmentNo: req.EnrollmentNo}
	case model.RoleStaff:
		staff = &model.Staff{Name: name, Email: email, Title: req.Title}
	default:
		return nil, "", makeErr(ErrBadInput)
	}

	if err := s.r.Create(ctx, u, student, staff); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return nil, "", makeErr(ErrEmailTaken)
		}
		return nil, "", err
	}

	token, err := jwtutil.Issue(s.secret, u.ID, u.Email, string(u.Role), 24)
	if err != nil {
		return nil, "", err
	}
	return u, token, nil
}

func (s *service) Login(ctx context.Context, req model.LoginReq) (*model.User, string, error) {
	email := strings.TrimSpace(req.Email)
	if email == "" || req.Password == "" {
		return nil, "", makeErr(ErrBadInput)
	}

	u, err := s.r.ByEmail(ctx, email)
	if err != nil {
		return nil, "", makeErr(ErrInvalidCreds)
	}
	if !hash.Check(u.PasswordHash, req.Password) {
		return nil, "", makeErr(ErrInvalidCreds)
	}

	token, err := jwtutil.Issue(s.secret, u.ID, u.Email, string(u.Role), 24)
	if err != nil {
		return nil, "", err
	}
	return u, token, nil
}

func (s *service) UpdatePassword(ctx context.Context, who model.Identity, req model.UpdatePasswordReq) error {
	u, err := s.r.ByID(ctx, who.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return makeErr(ErrNotFound)
		}
		return err
	}
	if !hash.Check(u.PasswordHash, req.CurrentPassword) {
		return makeErr(ErrInvalidCreds)
	}
	hashed, err := hash.HashPassword(req.NewPassword)
	if err != nil {
		return err
	}
	return s.r.UpdatePassword(ctx, who.UserID, hashed)
}

func (s *service) UploadPhoto(ctx context.Context, who model.Identity, filename string, body io.Reader, contentType string) (string, error) {
	if s.up == nil {
		return "", errors.New("object storage is not configured")
	}

	var oldURL string
	if u, err := s.r.ByID(ctx, who.UserID); err == nil {
		oldURL = u.PhotoURL
	}

	url, err := s.up.Upload(ctx, "profile-photos/", filename, body, contentType)
	if err != nil {
		return "", err
	}
	if err := s.r.UpdatePhotoURL(ctx, who.UserID, url); err != nil {
		return "", err
	}

	// The replaced object is orphaned once the new URL is saved; removal is
	// best effort.
	if key := storagerepo.KeyFromURL(oldURL); key != "" {
		_ = s.up.Delete(ctx, key)
	}
	return url, nil
}

func (s *service) Profile(ctx context.Context, who model.Identity) (*model.User, error) {
	u, err := s.r.ByID(ctx, who.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, makeErr(ErrNotFound)
		}
		return nil, err
	}
	return u, nil
}
