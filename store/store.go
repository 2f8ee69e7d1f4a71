// Package store keeps a portfolio in a folder of human readable files.
//
// The folder is meant to live in a private git repository, files are stable
// and diff friendly:
//
//	portfolio.json      accounts and their holdings, edited by hand.
//	profiles.jsonl      one asset profile per line, sorted by symbol.
//	quotes/2024.jsonl   one quote per line, sorted by symbol then date.
//
// A Store implements tracker.Host and tracker.Flusher. Writes are kept in
// memory until Flush.
package store

import (
	"cmp"
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/etnz/treasury"
	"github.com/etnz/treasury/tracker"
	"github.com/shopspring/decimal"
)

// account is an account of portfolio.json.
type account struct {
	ID       string    `json:"id"`
	Name     string    `json:"name,omitempty"`
	Holdings []holding `json:"holdings"`
}

type holding struct {
	Symbol   string          `json:"symbol"`
	Quantity decimal.Decimal `json:"quantity"`
}

// Store is a folder backed portfolio. It is safe for concurrent use.
type Store struct {
	dir string

	mu           sync.Mutex
	accounts     []account
	portfolioMod time.Time                           // of portfolio.json when last read or written.
	quotes       map[string]map[string]tracker.Quote // by normalized symbol, then quote id.
	profiles     map[string]tracker.Profile          // by normalized symbol.

	portfolioDirty, profilesDirty bool
	dirtyYears                    map[int]bool // of quotes modified since the last flush.
}

// Dir returns the folder of the store.
func (s *Store) Dir() string { return s.dir }

// Accounts returns the accounts of the portfolio. portfolio.json is read again
// if it changed on disk.
func (s *Store) Accounts(ctx context.Context) ([]tracker.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.reloadPortfolio(); err != nil {
		return nil, err
	}
	list := make([]tracker.Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		list = append(list, tracker.Account{ID: a.ID, Name: a.Name})
	}
	return list, nil
}

// Holdings returns the holdings of an account.
func (s *Store) Holdings(ctx context.Context, accountID string) ([]tracker.Holding, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.accounts {
		if a.ID != accountID {
			continue
		}
		list := make([]tracker.Holding, 0, len(a.Holdings))
		for _, h := range a.Holdings {
			list = append(list, tracker.Holding{AccountID: a.ID, Symbol: h.Symbol, Quantity: h.Quantity})
		}
		return list, nil
	}
	return nil, fmt.Errorf("unknown account %q", accountID)
}

// Quotes returns the quotes of symbol sorted by date.
func (s *Store) Quotes(ctx context.Context, symbol string) ([]tracker.Quote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := slices.Collect(maps.Values(s.quotes[treasury.Normalize(symbol)]))
	slices.SortFunc(list, compareQuotes)
	return list, nil
}

// Symbols returns the symbols with at least one quote.
func (s *Store) Symbols() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Sorted(maps.Keys(s.quotes))
}

// Profile returns the profile of symbol, an empty one with the normalized
// symbol if there is none.
func (s *Store) Profile(ctx context.Context, symbol string) (tracker.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := treasury.Normalize(symbol)
	p, ok := s.profiles[key]
	if !ok {
		p.Symbol = key
	}
	return p, nil
}

// UpdateProfile replaces the profile of p.Symbol.
func (s *Store) UpdateProfile(ctx context.Context, p tracker.Profile) error {
	if strings.TrimSpace(p.Symbol) == "" {
		return fmt.Errorf("profile without symbol")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[treasury.Normalize(p.Symbol)] = p
	s.profilesDirty = true
	return nil
}

// UpsertQuote inserts q or replaces the quote with the same id.
func (s *Store) UpsertQuote(ctx context.Context, q tracker.Quote) error {
	if q.ID == "" || q.Timestamp.IsZero() {
		return fmt.Errorf("quote %q of %q: missing id or timestamp", q.ID, q.Symbol)
	}
	key := treasury.Normalize(q.Symbol)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.quotes[key] == nil {
		s.quotes[key] = make(map[string]tracker.Quote)
	}
	s.quotes[key][q.ID] = q
	s.dirtyYears[q.Timestamp.UTC().Year()] = true
	return nil
}

// Hold sets the quantity of symbol held in account, creating the account if
// needed. A zero quantity removes the holding.
func (s *Store) Hold(accountID, symbol string, quantity decimal.Decimal) error {
	accountID, symbol = strings.TrimSpace(accountID), treasury.Normalize(symbol)
	if accountID == "" || symbol == "" {
		return fmt.Errorf("account and symbol are required")
	}
	if quantity.IsNegative() {
		return fmt.Errorf("invalid quantity %s", quantity)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.portfolioDirty = true

	i := slices.IndexFunc(s.accounts, func(a account) bool { return a.ID == accountID })
	if i < 0 {
		s.accounts = append(s.accounts, account{ID: accountID})
		i = len(s.accounts) - 1
	}
	a := &s.accounts[i]
	j := slices.IndexFunc(a.Holdings, func(h holding) bool { return treasury.Normalize(h.Symbol) == symbol })
	switch {
	case j < 0 && quantity.IsZero():
	case j < 0:
		a.Holdings = append(a.Holdings, holding{Symbol: symbol, Quantity: quantity})
	case quantity.IsZero():
		a.Holdings = slices.Delete(a.Holdings, j, j+1)
	default:
		a.Holdings[j].Quantity = quantity
	}
	return nil
}

func compareQuotes(a, b tracker.Quote) int {
	if n := cmp.Compare(treasury.Normalize(a.Symbol), treasury.Normalize(b.Symbol)); n != 0 {
		return n
	}
	if n := a.Timestamp.Compare(b.Timestamp); n != 0 {
		return n
	}
	return cmp.Compare(a.ID, b.ID)
}
