package workbook

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// DefaultTimeout bounds the download of the remote workbook.
const DefaultTimeout = 20 * time.Second

// Source fetches the remote workbook and keeps it for the lifetime of the process.
type Source struct {
	url     string
	client  *http.Client
	timeout time.Duration

	flight singleflight.Group
	mu     sync.Mutex
	cached *Workbook
}

// Option configures a Source.
type Option func(*Source)

// WithTimeout sets the download timeout.
func WithTimeout(d time.Duration) Option { return func(s *Source) { s.timeout = d } }

// WithClient sets the http client used to download the workbook.
func WithClient(c *http.Client) Option { return func(s *Source) { s.client = c } }

// WithDiskCache keeps downloaded workbooks in the temp dir for the day.
func WithDiskCache() Option {
	return func(s *Source) { s.client = newDailyCachingClient(s.client.Transport) }
}

// NewSource returns a Source downloading the workbook at url.
func NewSource(url string, opts ...Option) *Source {
	s := &Source{
		url:     url,
		client:  &http.Client{Transport: http.DefaultTransport},
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Preloaded returns a Source that always serves w.
func Preloaded(w *Workbook) *Source {
	s := NewSource("")
	s.cached = w
	return s
}

// Workbook returns the workbook, downloading it on first use.
//
// Concurrent callers wait for the same download. If it fails, the error is
// returned to every waiting caller and the next call downloads again.
func (s *Source) Workbook(ctx context.Context) (*Workbook, error) {
	s.mu.Lock()
	w := s.cached
	s.mu.Unlock()
	if w != nil {
		return w, nil
	}

	ch := s.flight.DoChan(s.url, func() (any, error) {
		// The download is shared: it must not die with the caller that started it.
		w, err := s.fetch(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		s.cached = w
		s.mu.Unlock()
		return w, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Workbook), nil
	}
}

// Reset forgets the cached workbook, the next call downloads it again.
func (s *Source) Reset() {
	s.mu.Lock()
	s.cached = nil
	s.mu.Unlock()
}

// fetch downloads and decodes the workbook within the timeout.
func (s *Source) fetch(ctx context.Context) (*Workbook, error) {
	if s.url == "" {
		return nil, fmt.Errorf("no workbook url configured")
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	log.Println("downloading workbook", s.url)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("cannot create http request %q: %w", s.url, err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("cannot download workbook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("cannot download workbook %v/%v: %v", resp.Request.URL.Host, resp.Request.URL.Path, resp.Status)
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, resp.Body); err != nil {
		return nil, fmt.Errorf("cannot read workbook body: %w", err)
	}
	return Decode(&buf)
}
