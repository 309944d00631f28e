package metadatarepo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"unilib/util/httpx"
)

const googleBooksBase = "https://www.googleapis.com/books/v1/volumes"
const openLibraryCovers = "https://covers.openlibrary.org/b/isbn"

type httpRepo struct {
	client *http.Client
	base   string
}

func NewHTTP() Repo {
	return &httpRepo{client: httpx.Client(), base: googleBooksBase}
}

// NewHTTPWithBase is for tests pointing at a local server.
func NewHTTPWithBase(base string) Repo {
	return &httpRepo{client: httpx.Client(), base: base}
}

type volumesResp struct {
	TotalItems int `json:"totalItems"`
	Items      []struct {
		VolumeInfo struct {
			Title       string   `json:"title"`
			Subtitle    string   `json:"subtitle"`
			Authors     []string `json:"authors"`
			Description string   `json:"description"`
			Categories  []string `json:"categories"`
		} `json:"volumeInfo"`
	} `json:"items"`
}

func (r *httpRepo) ByISBN(ctx context.Context, isbn string) (*Book, error) {
	isbn = strings.ReplaceAll(strings.TrimSpace(isbn), "-", "")
	if isbn == "" {
		return nil, fmt.Errorf("isbn is required")
	}

	q := url.Values{}
	q.Set("q", "isbn:"+isbn)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.base+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("metadata provider returned %d", resp.StatusCode)
	}

	var data volumesResp
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, err
	}
	if data.TotalItems == 0 || len(data.Items) == 0 {
		return nil, fmt.Errorf("no volume found for isbn %s", isbn)
	}

	vi := data.Items[0].VolumeInfo
	b := &Book{
		Title:       vi.Title,
		Description: strings.TrimSpace(vi.Description),
		// Open Library serves covers by bare ISBN; Google Books image URLs
		// often require a captcha.
		CoverURL: fmt.Sprintf("%s/%s-L.jpg", openLibraryCovers, isbn),
	}
	if vi.Subtitle != "" {
		b.Title = b.Title + ": " + vi.Subtitle
	}
	if len(vi.Authors) > 0 {
		b.Author = strings.Join(vi.Authors, ", ")
	}
	if len(vi.Categories) > 0 {
		b.Category = vi.Categories[0]
	}
	return b, nil
}
