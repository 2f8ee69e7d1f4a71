package workbook

import (
	"bufio"
	"bytes"
	"crypto/sha1"
	"fmt"
	"log"
	"net/http"
	"net/http/httputil"
	"os"
	"path/filepath"

	"github.com/etnz/treasury/date"
)

// diskCache is a RoundTripper keeping successful GET responses on disk until
// the end of the day.
type diskCache struct {
	base http.RoundTripper
	dir  string
}

// entry returns the cache file of req for today.
func (c *diskCache) entry(req *http.Request) string {
	sum := sha1.Sum([]byte(date.Today().String() + " " + req.URL.String()))
	return filepath.Join(c.dir, fmt.Sprintf("treasury-%x", sum))
}

func (c *diskCache) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Method != http.MethodGet {
		return c.base.RoundTrip(req)
	}
	filename := c.entry(req)
	if content, err := os.ReadFile(filename); err == nil {
		resp, err := http.ReadResponse(bufio.NewReader(bytes.NewReader(content)), req)
		if err == nil {
			log.Printf("GET %v/%v served from %q", req.URL.Host, req.URL.Path, filename)
			return resp, nil
		}
		log.Printf("ignoring corrupted cache entry %q: %v", filename, err)
	}

	resp, err := c.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	log.Printf("GET %v/%v %v", req.URL.Host, req.URL.Path, resp.Status)
	if resp.StatusCode != http.StatusOK {
		return resp, nil
	}
	// DumpResponse reads the body and replaces it with an in-memory copy.
	content, err := httputil.DumpResponse(resp, true)
	if err != nil {
		return nil, fmt.Errorf("cannot read response of %v: %w", req.URL, err)
	}
	if err := os.WriteFile(filename, content, 0o644); err != nil {
		log.Printf("cache write err (ignored): %v", err)
	}
	return resp, nil
}

// newDailyCachingClient returns an http.Client that uses a disk cache where entries expire daily.
func newDailyCachingClient(base http.RoundTripper) *http.Client {
	if base == nil {
		base = http.DefaultTransport
	}
	return &http.Client{Transport: &diskCache{base: base, dir: os.TempDir()}}
}
