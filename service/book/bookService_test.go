// service/book/book_service_test.go
package booksvc

import (
	"context"
	"errors"
	"io"
	"testing"

	"unilib/model"
	bookrepo "unilib/repository/book"
	metadatarepo "unilib/repository/metadata"
	storagerepo "unilib/repository/storage"

	"github.com/stretchr/testify/require"
)

type mockRepo struct {
	createFn     func(ctx context.Context, b *model.Book) error
	updateFn     func(ctx context.Context, b *model.Book) error
	deleteFn     func(ctx context.Context, id int64) error
	listFn       func(ctx context.Context, category string) ([]model.Book, error)
	searchFn     func(ctx context.Context, query string) ([]model.Book, error)
	detailFn     func(ctx context.Context, id int64) (*model.Book, error)
	categoriesFn func(ctx context.Context) ([]string, error)
}

var _ Repo = (*mockRepo)(nil)

func (m *mockRepo) Create(ctx context.Context, b *model.Book) error {
	if m.createFn == nil {
		b.ID = 1
		return nil
	}
	return m.createFn(ctx, b)
}

func (m *mockRepo) Update(ctx context.Context, b *model.Book) error {
	if m.updateFn == nil {
		return nil
	}
	return m.updateFn(ctx, b)
}

func (m *mockRepo) Delete(ctx context.Context, id int64) error {
	if m.deleteFn == nil {
		return nil
	}
	return m.deleteFn(ctx, id)
}

func (m *mockRepo) List(ctx context.Context, category string) ([]model.Book, error) {
	if m.listFn == nil {
		return nil, nil
	}
	return m.listFn(ctx, category)
}

func (m *mockRepo) Search(ctx context.Context, query string) ([]model.Book, error) {
	if m.searchFn == nil {
		return nil, nil
	}
	return m.searchFn(ctx, query)
}

func (m *mockRepo) Detail(ctx context.Context, id int64) (*model.Book, error) {
	if m.detailFn == nil {
		return &model.Book{ID: id}, nil
	}
	return m.detailFn(ctx, id)
}

func (m *mockRepo) Categories(ctx context.Context) ([]string, error) {
	if m.categoriesFn == nil {
		return nil, nil
	}
	return m.categoriesFn(ctx)
}

type uploaderMock struct {
	uploadFn func(ctx context.Context, prefix, originalFilename string, body io.Reader, contentType string) (string, error)
	deleteFn func(ctx context.Context, key string) error
}

var _ storagerepo.Uploader = (*uploaderMock)(nil)

func (m *uploaderMock) Upload(ctx context.Context, prefix, originalFilename string, body io.Reader, contentType string) (string, error) {
	return m.uploadFn(ctx, prefix, originalFilename, body, contentType)
}

func (m *uploaderMock) Delete(ctx context.Context, key string) error {
	if m.deleteFn == nil {
		return nil
	}
	return m.deleteFn(ctx, key)
}

type metaMock struct {
	byISBNFn func(ctx context.Context, isbn string) (*metadatarepo.Book, error)
}

func (m *metaMock) ByISBN(ctx context.Context, isbn string) (*metadatarepo.Book, error) {
	return m.byISBNFn(ctx, isbn)
}

// --- tests ---

func TestCreate_Validation(t *testing.T) {
	svc := New(&mockRepo{}, nil, nil, nil)
	ctx := context.Background()

	_, err := svc.Create(ctx, model.CreateBookReq{Author: "a", TotalCopies: 1})
	require.Equal(t, ErrBadInput, Code(err))

	_, err = svc.Create(ctx, model.CreateBookReq{Title: "t", TotalCopies: 1})
	require.Equal(t, ErrBadInput, Code(err))

	_, err = svc.Create(ctx, model.CreateBookReq{Title: "t", Author: "a", TotalCopies: 0})
	require.Equal(t, ErrBadInput, Code(err))
}

func TestCreate_Success(t *testing.T) {
	m := &mockRepo{
		createFn: func(ctx context.Context, b *model.Book) error {
			b.ID = 42
			return nil
		},
	}
	svc := New(m, nil, nil, nil)

	b, err := svc.Create(context.Background(), model.CreateBookReq{
		Title:       "The Go Programming Language",
		Author:      "Donovan & Kernighan",
		Category:    "CS",
		TotalCopies: 3,
	})
	require.NoError(t, err)
	require.Equal(t, int64(42), b.ID)
	require.Equal(t, int64(3), b.TotalCopies)
	require.Equal(t, int64(3), b.AvailableCopies)
}

func TestCreate_EnrichFromISBN(t *testing.T) {
	meta := &metaMock{
		byISBNFn: func(ctx context.Context, isbn string) (*metadatarepo.Book, error) {
			require.Equal(t, "9780134190440", isbn)
			return &metadatarepo.Book{
				Description: "from provider",
				CoverURL:    "https://covers.example/42.jpg",
				Category:    "CS",
			}, nil
		},
	}
	svc := New(&mockRepo{}, meta, nil, nil)

	b, err := svc.Create(context.Background(), model.CreateBookReq{
		Title:       "The Go Programming Language",
		Author:      "Donovan & Kernighan",
		ISBN:        "9780134190440",
		TotalCopies: 1,
	})
	require.NoError(t, err)
	require.Equal(t, "from provider", b.Description)
	require.Equal(t, "https://covers.example/42.jpg", b.CoverURL)
	require.Equal(t, "CS", b.Category)
}

func TestCreate_EnrichKeepsExplicitFields(t *testing.T) {
	meta := &metaMock{
		byISBNFn: func(ctx context.Context, isbn string) (*metadatarepo.Book, error) {
			return &metadatarepo.Book{Description: "from provider", CoverURL: "x"}, nil
		},
	}
	svc := New(&mockRepo{}, meta, nil, nil)

	b, err := svc.Create(context.Background(), model.CreateBookReq{
		Title:       "t",
		Author:      "a",
		ISBN:        "9780134190440",
		Description: "mine",
		TotalCopies: 1,
	})
	require.NoError(t, err)
	require.Equal(t, "mine", b.Description)
	require.Equal(t, "x", b.CoverURL)
}

func TestCreate_EnrichFailureIgnored(t *testing.T) {
	meta := &metaMock{
		byISBNFn: func(ctx context.Context, isbn string) (*metadatarepo.Book, error) {
			return nil, errors.New("provider down")
		},
	}
	svc := New(&mockRepo{}, meta, nil, nil)

	b, err := svc.Create(context.Background(), model.CreateBookReq{
		Title:       "t",
		Author:      "a",
		ISBN:        "9780134190440",
		TotalCopies: 1,
	})
	require.NoError(t, err)
	require.Empty(t, b.Description)
}

func TestUpdate_NotFound(t *testing.T) {
	m := &mockRepo{
		updateFn: func(ctx context.Context, b *model.Book) error { return bookrepo.ErrNotFound },
	}
	svc := New(m, nil, nil, nil)

	_, err := svc.Update(context.Background(), 404, model.UpdateBookReq{
		Title: "t", Author: "a", TotalCopies: 1,
	})
	require.Error(t, err)
	require.Equal(t, ErrNotFound, Code(err))
}

func TestUpdate_CopiesOnLoan(t *testing.T) {
	m := &mockRepo{
		updateFn: func(ctx context.Context, b *model.Book) error { return bookrepo.ErrCopiesOnLoan },
	}
	svc := New(m, nil, nil, nil)

	_, err := svc.Update(context.Background(), 7, model.UpdateBookReq{
		Title: "t", Author: "a", TotalCopies: 1,
	})
	require.Error(t, err)
	require.Equal(t, ErrCopiesOnLoan, Code(err))
}

func TestDelete_NotFound(t *testing.T) {
	m := &mockRepo{
		deleteFn: func(ctx context.Context, id int64) error { return bookrepo.ErrNotFound },
	}
	svc := New(m, nil, nil, nil)

	err := svc.Delete(context.Background(), 404)
	require.Error(t, err)
	require.Equal(t, ErrNotFound, Code(err))
}

func TestDelete_RemovesStoredCover(t *testing.T) {
	var deleted string
	m := &mockRepo{
		detailFn: func(ctx context.Context, id int64) (*model.Book, error) {
			return &model.Book{
				ID:       id,
				CoverURL: "https://unilib.s3.us-east-1.amazonaws.com/covers/abc.jpg",
			}, nil
		},
	}
	up := &uploaderMock{
		deleteFn: func(ctx context.Context, key string) error {
			deleted = key
			return nil
		},
	}
	svc := New(m, nil, up, nil)

	require.NoError(t, svc.Delete(context.Background(), 7))
	require.Equal(t, "covers/abc.jpg", deleted)
}

func TestDelete_KeepsExternalCover(t *testing.T) {
	m := &mockRepo{
		detailFn: func(ctx context.Context, id int64) (*model.Book, error) {
			return &model.Book{
				ID:       id,
				CoverURL: "https://covers.openlibrary.org/b/isbn/9780134190440-L.jpg",
			}, nil
		},
	}
	up := &uploaderMock{
		deleteFn: func(ctx context.Context, key string) error {
			t.Fatal("external cover objects must not be deleted")
			return nil
		},
	}
	svc := New(m, nil, up, nil)

	require.NoError(t, svc.Delete(context.Background(), 7))
}

func TestSearch_EmptyQuery(t *testing.T) {
	svc := New(&mockRepo{}, nil, nil, nil)

	_, err := svc.Search(context.Background(), "   ")
	require.Error(t, err)
	require.Equal(t, ErrBadInput, Code(err))
}

func TestDetail_NotFound(t *testing.T) {
	m := &mockRepo{
		detailFn: func(ctx context.Context, id int64) (*model.Book, error) {
			return nil, bookrepo.ErrNotFound
		},
	}
	svc := New(m, nil, nil, nil)

	_, err := svc.Detail(context.Background(), 404)
	require.Error(t, err)
	require.Equal(t, ErrNotFound, Code(err))
}

func TestList_PassesCategory(t *testing.T) {
	m := &mockRepo{
		listFn: func(ctx context.Context, category string) ([]model.Book, error) {
			require.Equal(t, "CS", category)
			return []model.Book{{ID: 1}}, nil
		},
	}
	svc := New(m, nil, nil, nil)

	out, err := svc.List(context.Background(), "CS")
	require.NoError(t, err)
	require.Len(t, out, 1)
}
