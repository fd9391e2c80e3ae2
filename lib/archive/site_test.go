package archive

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"maexport/lib/scrapers/metalarchives"

	"github.com/PuerkitoBio/goquery"
)

// fakeSite serves canned HTML pages and scripted list responses, recording
// every request it sees.
type fakeSite struct {
	mu      sync.Mutex
	pages   map[string]string
	rows    func(endpoint string, query url.Values) (metalarchives.PagedRows, error)
	fetched []string
}

func newFakeSite() *fakeSite {
	return &fakeSite{pages: map[string]string{}}
}

func (s *fakeSite) record(endpoint string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetched = append(s.fetched, endpoint)
}

func (s *fakeSite) fetchCount(endpoint string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, f := range s.fetched {
		if f == endpoint {
			n++
		}
	}
	return n
}

func (s *fakeSite) FetchPage(ctx context.Context, endpoint string) (*goquery.Document, error) {
	s.record(endpoint)
	s.mu.Lock()
	html, ok := s.pages[endpoint]
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("fetch %s: status 500", endpoint)
	}
	return goquery.NewDocumentFromReader(strings.NewReader(html))
}

func (s *fakeSite) FetchPagedRows(ctx context.Context, endpoint string, query url.Values) (metalarchives.PagedRows, error) {
	s.record(endpoint)
	if s.rows == nil {
		return metalarchives.PagedRows{}, fmt.Errorf("fetch %s: status 500", endpoint)
	}
	return s.rows(endpoint, query)
}
