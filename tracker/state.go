package tracker

import "fmt"

// State is the processing state of a held symbol.
type State int

const (
	// Unseen symbols are processed by the next pass.
	Unseen State = iota
	// InFlight symbols are being processed by a pass.
	InFlight
	// Processed symbols have their price history in line with their schedule.
	Processed
	// Skipped symbols have no known series or no computable schedule.
	Skipped
)

func (s State) String() string {
	switch s {
	case Unseen:
		return "unseen"
	case InFlight:
		return "in-flight"
	case Processed:
		return "processed"
	case Skipped:
		return "skipped"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Report summarizes a pass.
type Report struct {
	Processed []string // symbols whose history is in line.
	Skipped   []string // symbols without series or schedule.
	Failed    []string // symbols to retry on the next pass.
	Added     int      // quotes written for days without a price.
	Updated   int      // quotes replacing a different price.
	Profiles  int      // asset profiles completed.
}

// Written returns the number of quotes written.
func (r Report) Written() int { return r.Added + r.Updated }

// changed reports whether the pass modified the host.
func (r Report) changed() bool { return r.Written() > 0 || r.Profiles > 0 }
