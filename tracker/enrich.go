package tracker

import (
	"context"

	"github.com/etnz/treasury"
)

// Profile values of the bonds.
const (
	BondClass    = "Bond"
	BondSubClass = "Government Bond"
	BondCountry  = "PL"
)

// enrich fills the missing fields of the profile of symbol, once per symbol,
// and reports whether the profile was updated.
//
// A name set by the user is kept: the name is only replaced when it is empty
// or merely repeats the symbol. Failures are logged and the symbol is enriched
// again on the next pass.
func (e *Engine) enrich(ctx context.Context, symbol string, ref treasury.Reference) bool {
	key := treasury.Normalize(symbol)
	e.mu.Lock()
	done := e.enriched[key]
	e.mu.Unlock()
	if done {
		return false
	}

	p, err := e.host.Profile(ctx, symbol)
	if err != nil {
		e.log.Warn("cannot read profile", "symbol", symbol, "err", err)
		return false
	}
	desc, _, err := e.series.Description(ctx, ref.BondType)
	if err != nil {
		e.log.Warn("cannot read bond description", "type", ref.BondType, "err", err)
		return false
	}
	enriched, changed := completeProfile(p, symbol, ref, desc)
	if changed {
		if err := e.host.UpdateProfile(ctx, enriched); err != nil {
			e.log.Warn("cannot update profile", "symbol", symbol, "err", err)
			return false
		}
	}
	e.mu.Lock()
	e.enriched[key] = true
	e.mu.Unlock()
	return changed
}

// completeProfile returns p with its missing fields filled in, and whether
// anything changed.
func completeProfile(p Profile, symbol string, ref treasury.Reference, desc string) (Profile, bool) {
	orig := p
	if p.Symbol == "" {
		p.Symbol = symbol
	}
	p.Symbol = treasury.Normalize(p.Symbol)
	if p.AssetClass == "" {
		p.AssetClass = BondClass
	}
	if p.AssetSubClass == "" {
		p.AssetSubClass = BondSubClass
	}
	if p.Country == "" {
		p.Country = BondCountry
	}
	if p.Name == "" || treasury.Normalize(p.Name) == treasury.Normalize(symbol) {
		p.Name = ref.SeriesID
		if desc != "" {
			p.Name += " " + desc
		}
	}
	return p, p != orig
}
