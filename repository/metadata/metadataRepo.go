package metadatarepo

import "context"

// Book is the normalized metadata returned by the lookup provider.
type Book struct {
	Title       string
	Author      string
	Category    string
	Description string
	CoverURL    string
}

type Repo interface {
	// ByISBN resolves book metadata for the given ISBN, or an error when the
	// provider has no matching volume.
	ByISBN(ctx context.Context, isbn string) (*Book, error)
}
