package booksvc

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"

	"unilib/model"
	bookrepo "unilib/repository/book"
	metadatarepo "unilib/repository/metadata"
	storagerepo "unilib/repository/storage"
)

type ErrCode string

const (
	ErrBadInput     ErrCode = "BAD_INPUT"
	ErrNotFound     ErrCode = "NOT_FOUND"
	ErrCopiesOnLoan ErrCode = "COPIES_ON_LOAN"
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

type Repo interface {
	Create(ctx context.Context, b *model.Book) error
	Update(ctx context.Context, b *model.Book) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, category string) ([]model.Book, error)
	Search(ctx context.Context, query string) ([]model.Book, error)
	Detail(ctx context.Context, id int64) (*model.Book, error)
	Categories(ctx context.Context) ([]string, error)
}

type Service interface {
	Create(ctx context.Context, req model.CreateBookReq) (*model.Book, error)
	Update(ctx context.Context, id int64, req model.UpdateBookReq) (*model.Book, error)
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, category string) ([]model.Book, error)
	Search(ctx context.Context, query string) ([]model.Book, error)
	Detail(ctx context.Context, id int64) (*model.Book, error)
	Categories(ctx context.Context) ([]string, error)
	UploadCover(ctx context.Context, filename string, body io.Reader, contentType string) (string, error)
}

type service struct {
	r    Repo
	meta metadatarepo.Repo
	up   storagerepo.Uploader
	log  *slog.Logger
}

func New(r Repo, meta metadatarepo.Repo, up storagerepo.Uploader, log *slog.Logger) Service {
	return &service{r: r, meta: meta, up: up, log: log}
}

func (s *service) Create(ctx context.Context, req model.CreateBookReq) (*model.Book, error) {
	if strings.TrimSpace(req.Title) == "" || strings.TrimSpace(req.Author) == "" || req.TotalCopies <= 0 {
		return nil, makeErr(ErrBadInput)
	}

	b := &model.Book{
		Title:       req.Title,
		Author:      req.Author,
		ISBN:        req.ISBN,
		Category:    req.Category,
		Description: req.Description,
		CoverURL:    req.CoverURL,
		IsDigital:   req.IsDigital,
		DigitalURL:  req.DigitalURL,
		TotalCopies: req.TotalCopies,
	}
	s.enrich(ctx, b)

	if err := s.r.Create(ctx, b); err != nil {
		return nil, err
	}
	b.AvailableCopies = b.TotalCopies
	return b, nil
}

// enrich fills missing descriptive fields from the metadata provider when an
// ISBN is present. Lookup failures are logged and ignored; the catalog entry
// is still valid without them.
func (s *service) enrich(ctx context.Context, b *model.Book) {
	if s.meta == nil || b.ISBN == "" {
		return
	}
	if b.Description != "" && b.CoverURL != "" {
		return
	}
	meta, err := s.meta.ByISBN(ctx, b.ISBN)
	if err != nil {
		if s.log != nil {
			s.log.Warn("isbn lookup failed", "isbn", b.ISBN, "err", err)
		}
		return
	}
	if b.Description == "" {
		b.Description = meta.Description
	}
	if b.CoverURL == "" {
		b.CoverURL = meta.CoverURL
	}
	if b.Category == "" {
		b.Category = meta.Category
	}
}

func (s *service) Update(ctx context.Context, id int64, req model.UpdateBookReq) (*model.Book, error) {
	if strings.TrimSpace(req.Title) == "" || strings.TrimSpace(req.Author) == "" || req.TotalCopies <= 0 {
		return nil, makeErr(ErrBadInput)
	}

	b := &model.Book{
		ID:          id,
		Title:       req.Title,
		Author:      req.Author,
		ISBN:        req.ISBN,
		Category:    req.Category,
		Description: req.Description,
		CoverURL:    req.CoverURL,
		IsDigital:   req.IsDigital,
		DigitalURL:  req.DigitalURL,
		TotalCopies: req.TotalCopies,
	}
	s.enrich(ctx, b)

	if err := s.r.Update(ctx, b); err != nil {
		switch {
		case errors.Is(err, bookrepo.ErrNotFound):
			return nil, makeErr(ErrNotFound)
		case errors.Is(err, bookrepo.ErrCopiesOnLoan):
			return nil, makeErr(ErrCopiesOnLoan)
		}
		return nil, err
	}
	return s.r.Detail(ctx, id)
}

func (s *service) Delete(ctx context.Context, id int64) error {
	b, err := s.r.Detail(ctx, id)
	if err != nil {
		if errors.Is(err, bookrepo.ErrNotFound) {
			return makeErr(ErrNotFound)
		}
		return err
	}

	if err := s.r.Delete(ctx, id); err != nil {
		if errors.Is(err, bookrepo.ErrNotFound) {
			return makeErr(ErrNotFound)
		}
		return err
	}

	// Drop the stored cover object; external cover URLs yield no key.
	if s.up != nil {
		if key := storagerepo.KeyFromURL(b.CoverURL); key != "" {
			_ = s.up.Delete(ctx, key)
		}
	}
	return nil
}

func (s *service) List(ctx context.Context, category string) ([]model.Book, error) {
	return s.r.List(ctx, category)
}

func (s *service) Search(ctx context.Context, query string) ([]model.Book, error) {
	if strings.TrimSpace(query) == "" {
		return nil, makeErr(ErrBadInput)
	}
	return s.r.Search(ctx, query)
}

func (s *service) Detail(ctx context.Context, id int64) (*model.Book, error) {
	b, err := s.r.Detail(ctx, id)
	if err != nil {
		if errors.Is(err, bookrepo.ErrNotFound) {
			return nil, makeErr(ErrNotFound)
		}
		return nil, err
	}
	return b, nil
}

func (s *service) Categories(ctx context.Context) ([]string, error) {
	return s.r.Categories(ctx)
}

func (s *service) UploadCover(ctx context.Context, filename string, body io.Reader, contentType string) (string, error) {
	if s.up == nil {
		return "", errors.New("object storage is not configured")
	}
	return s.up.Upload(ctx, "covers/", filename, body, contentType)
}
