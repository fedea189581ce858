// Package fetch retrieves post markup through an ordered chain of strategies:
// a headless browser first, then a public relay proxy.
package fetch

import (
	"context"

	"github.com/rotisserie/eris"
)

// Mode tells the extractor how to read a page.
type Mode string

const (
	// ModeDOM is markup serialized from a live DOM, with image elements
	// annotated with their rendered natural size.
	ModeDOM Mode = "dom"
	// ModeMarkup is the raw markup as served over HTTP.
	ModeMarkup Mode = "markup"
)

// Page is the raw result of a successful fetch.
type Page struct {
	URL      string
	HTML     string
	Mode     Mode
	Strategy string
}

// Strategy fetches a single post URL.
type Strategy interface {
	Name() string
	Fetch(ctx context.Context, url string) (*Page, error)
}

// ErrFetchUnavailable is returned when every strategy failed or was skipped.
var ErrFetchUnavailable = eris.New("fetch: no strategy could retrieve the post")

// ErrBlocked marks a response that is a login wall or anti-bot page.
var ErrBlocked = eris.New("fetch: blocked")
