package store

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/etnz/treasury"
	"github.com/etnz/treasury/tracker"
)

// File names in the store folder.
const (
	PortfolioFile = "portfolio.json"
	ProfilesFile  = "profiles.jsonl"
	QuotesDir     = "quotes"

	quoteFilesGlob = "[0-9][0-9][0-9][0-9].jsonl"
)

// fileLine is a line of a file, with its position for error messages.
type fileLine struct {
	filename string
	i        int
	txt      string
}

// loadLines reads all non empty lines of files.
func loadLines(filenames ...string) ([]fileLine, error) {
	var list []fileLine
	for _, filename := range filenames {
		f, err := os.Open(filename)
		if err != nil {
			return nil, fmt.Errorf("cannot open %q for reading: %w", filename, err)
		}
		scanner := bufio.NewScanner(f)
		for i := 1; scanner.Scan(); i++ {
			if txt := scanner.Text(); strings.TrimSpace(txt) != "" {
				list = append(list, fileLine{filename, i, txt})
			}
		}
		err = scanner.Err()
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("cannot read %q: %w", filename, err)
		}
	}
	return list, nil
}

// Open loads the store in dir. Missing files are empty.
func Open(dir string) (*Store, error) {
	s := &Store{
		dir:      dir,
		quotes:     make(map[string]map[string]tracker.Quote),
		profiles:   make(map[string]tracker.Profile),
		dirtyYears: make(map[int]bool),
	}
	if err := s.decodePortfolio(); err != nil {
		return nil, err
	}
	if err := s.decodeProfiles(); err != nil {
		return nil, err
	}
	if err := s.decodeQuotes(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) decodePortfolio() error {
	filename := filepath.Join(s.dir, PortfolioFile)
	info, err := os.Stat(filename)
	if errors.Is(err, os.ErrNotExist) {
		s.accounts, s.portfolioMod = nil, time.Time{}
		return nil
	}
	if err != nil {
		return fmt.Errorf("load error: cannot read %q: %w", filename, err)
	}
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("load error: cannot read %q: %w", filename, err)
	}
	s.portfolioMod = info.ModTime()
	var jportfolio struct {
		Accounts []account `json:"accounts"`
	}
	if err := json.Unmarshal(data, &jportfolio); err != nil {
		return fmt.Errorf("load error: %q is not a valid portfolio: %w", filename, err)
	}
	s.accounts = jportfolio.Accounts
	return nil
}

func (s *Store) decodeProfiles() error {
	filename := filepath.Join(s.dir, ProfilesFile)
	if _, err := os.Stat(filename); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	lines, err := loadLines(filename)
	if err != nil {
		return fmt.Errorf("load error: %w", err)
	}
	for _, l := range lines {
		var p tracker.Profile
		if err := json.Unmarshal([]byte(l.txt), &p); err != nil {
			return fmt.Errorf("parse error %s:%v: not a profile: %w", l.filename, l.i, err)
		}
		if p.Symbol == "" {
			return fmt.Errorf("parse error %s:%v: missing symbol", l.filename, l.i)
		}
		s.profiles[treasury.Normalize(p.Symbol)] = p
	}
	return nil
}

func (s *Store) decodeQuotes() error {
	folder := filepath.Join(s.dir, QuotesDir)
	filenames, err := filepath.Glob(filepath.Join(folder, quoteFilesGlob))
	if err != nil {
		return fmt.Errorf("load error: cannot scan folder %q for quote files: %w", folder, err)
	}
	lines, err := loadLines(filenames...)
	if err != nil {
		return fmt.Errorf("load error: %w", err)
	}
	for _, l := range lines {
		var q tracker.Quote
		if err := json.Unmarshal([]byte(l.txt), &q); err != nil {
			return fmt.Errorf("parse error %s:%v: not a quote: %w", l.filename, l.i, err)
		}
		if q.ID == "" || q.Symbol == "" || q.Timestamp.IsZero() {
			return fmt.Errorf("parse error %s:%v: quote needs an id, a symbol and a timestamp", l.filename, l.i)
		}
		key := treasury.Normalize(q.Symbol)
		if s.quotes[key] == nil {
			s.quotes[key] = make(map[string]tracker.Quote)
		}
		s.quotes[key][q.ID] = q
	}
	return nil
}

// Flush writes the modified files.
//
// Quotes are written one file per year, only the files of modified years are
// rewritten and files of years without quotes are deleted.
func (s *Store) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.portfolioDirty {
		if err := s.encodePortfolio(); err != nil {
			return err
		}
		s.portfolioDirty = false
	}
	if s.profilesDirty {
		if err := s.encodeProfiles(); err != nil {
			return err
		}
		s.profilesDirty = false
	}
	if len(s.dirtyYears) > 0 {
		if err := s.encodeQuotes(); err != nil {
			return err
		}
		clear(s.dirtyYears)
	}
	return nil
}

// writeLines writes one JSON value per line into filename.
func writeLines[T any](filename string, values []T) error {
	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("persist error: cannot create file %q: %w", filename, err)
	}
	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	for _, v := range values {
		if err := enc.Encode(v); err != nil {
			f.Close()
			return fmt.Errorf("persist error: write error on file %q: %w", filename, err)
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("persist error: write error on file %q: %w", filename, err)
	}
	return f.Close()
}

func (s *Store) encodeProfiles() error {
	var list []tracker.Profile
	for _, key := range slices.Sorted(maps.Keys(s.profiles)) {
		list = append(list, s.profiles[key])
	}
	filename := filepath.Join(s.dir, ProfilesFile)
	log.Printf("write-profiles-file name=%q profiles=%d", filename, len(list))
	return writeLines(filename, list)
}

func (s *Store) encodeQuotes() error {
	folder := filepath.Join(s.dir, QuotesDir)
	if err := os.MkdirAll(folder, 0o755); err != nil {
		return fmt.Errorf("persist error: cannot create folder %q: %w", folder, err)
	}
	filenameOf := func(year int) string { return filepath.Join(folder, fmt.Sprintf("%04d.jsonl", year)) }

	years := make(map[int][]tracker.Quote)
	for _, byID := range s.quotes {
		for _, q := range byID {
			year := q.Timestamp.UTC().Year()
			years[year] = append(years[year], q)
		}
	}
	keep := make(map[string]bool)
	for year, list := range years {
		filename := filenameOf(year)
		keep[filename] = true
		if !s.dirtyYears[year] {
			continue
		}
		slices.SortFunc(list, compareQuotes)
		if err := writeLines(filename, list); err != nil {
			return err
		}
		log.Printf("write-quotes-file name=%q quotes=%d", filename, len(list))
	}

	// Delete extraneous files.
	filenames, err := filepath.Glob(filepath.Join(folder, quoteFilesGlob))
	if err != nil {
		return fmt.Errorf("persist error: cannot scan folder %q for quote files to be deleted: %w", folder, err)
	}
	for _, filename := range filenames {
		if keep[filename] {
			continue
		}
		if err := os.Remove(filename); err != nil {
			return fmt.Errorf("persist error: cannot delete file %q: %w", filename, err)
		}
		log.Printf("delete-quotes-file name=%q", filename)
	}
	return nil
}

func (s *Store) encodePortfolio() error {
	filename := filepath.Join(s.dir, PortfolioFile)
	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("persist error: cannot create file %q: %w", filename, err)
	}
	defer f.Close()
	if err := writePortfolio(f, s.accounts); err != nil {
		return fmt.Errorf("persist error: write error on file %q: %w", filename, err)
	}
	log.Printf("write-portfolio-file name=%q accounts=%d", filename, len(s.accounts))
	if err := f.Close(); err != nil {
		return err
	}
	if info, err := os.Stat(filename); err == nil {
		s.portfolioMod = info.ModTime()
	}
	return nil
}

// reloadPortfolio reads portfolio.json again if it was modified by someone
// else since it was last read or written.
func (s *Store) reloadPortfolio() error {
	if s.portfolioDirty {
		return nil
	}
	info, err := os.Stat(filepath.Join(s.dir, PortfolioFile))
	switch {
	case errors.Is(err, os.ErrNotExist) && s.portfolioMod.IsZero():
		return nil
	case err == nil && info.ModTime().Equal(s.portfolioMod):
		return nil
	}
	log.Printf("reload-portfolio-file dir=%q", s.dir)
	return s.decodePortfolio()
}

func writePortfolio(w io.Writer, accounts []account) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		Accounts []account `json:"accounts"`
	}{accounts})
}
