package platform

import (
	"context"
	"errors"
	"net/http"

	"github.com/amaumene/geowatch/internal/models"
)

// ErrAuthRequired is returned when a platform login is missing or rejected
var ErrAuthRequired = errors.New("platform authentication required")

// Source is one discovery listing of a platform (home page, category tree, search)
type Source struct {
	Name string
	Path string             // request path relative to the platform base URL, query included
	Kind models.ContentKind // kind assumed for nodes without a marker
}

// Response is a raw platform API answer.
// Non-2xx statuses are returned as responses, not errors.
type Response struct {
	StatusCode int
	Body       []byte
}

// OK reports whether the platform answered 200
func (r *Response) OK() bool {
	return r.StatusCode == http.StatusOK
}

// Client is the capability set every streaming platform provides
type Client interface {
	Name() string
	Language() string
	Login(ctx context.Context) error
	Sources() []Source
	FetchItem(ctx context.Context, slug string) (*Response, error)
	FetchChannel(ctx context.Context, slug string) (*Response, error)
	FetchSeries(ctx context.Context, slug string) (*Response, error)
	FetchListing(ctx context.Context, source Source) ([]byte, error)
	ProbeRestriction(ctx context.Context, slug string, kind models.ContentKind, language string) (int, error)
}
