package domain

import "fmt"

// ReviewFlag marks a field whose value was defaulted, clamped, or
// otherwise needs human confirmation before it can be treated as
// authoritative. Blocking flags prevent persistence until resolved.
type ReviewFlag struct {
	Path     string `json:"path"`
	Reason   string `json:"reason"`
	Blocking bool   `json:"blocking"`
}

func NewReviewFlag(path, reason string) ReviewFlag {
	return ReviewFlag{Path: path, Reason: reason}
}

func NewBlockingFlag(path, reason string) ReviewFlag {
	return ReviewFlag{Path: path, Reason: reason, Blocking: true}
}

// BlockingFlags returns only the flags severe enough to block persistence.
func BlockingFlags(flags []ReviewFlag) []ReviewFlag {
	var out []ReviewFlag
	for _, flag := range flags {
		if flag.Blocking {
			out = append(out, flag)
		}
	}
	return out
}

func (f ReviewFlag) String() string {
	if f.Blocking {
		return fmt.Sprintf("%s: %s (blocking)", f.Path, f.Reason)
	}
	return fmt.Sprintf("%s: %s", f.Path, f.Reason)
}
