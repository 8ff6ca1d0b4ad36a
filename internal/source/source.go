package source

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Snapshot is a work's metrics at fetch time.
type Snapshot struct {
	Title     string
	Chapters  int
	Kudos     int
	Comments  int
	Hits      int
	Words     int
	Published time.Time
}

// Source returns the current metrics for a work.
type Source interface {
	Fetch(ctx context.Context, workID string) (Snapshot, error)
}

// Kind classifies why a fetch failed. The update runner aborts the whole run
// on KindConnectivity and skips the entry for every other kind.
type Kind int

const (
	// KindConnectivity covers transport failures, timeouts, rate limiting and
	// server-side outages: conditions that affect every work equally.
	KindConnectivity Kind = iota + 1
	// KindNotFound means the work no longer exists upstream.
	KindNotFound
	// KindRestricted means the work requires a login to view.
	KindRestricted
	// KindUpstream is any other unexpected HTTP status.
	KindUpstream
	// KindParse means the page loaded but its stats could not be read.
	KindParse
)

func (k Kind) String() string {
	switch k {
	case KindConnectivity:
		return "connectivity"
	case KindNotFound:
		return "not found"
	case KindRestricted:
		return "restricted"
	case KindUpstream:
		return "upstream"
	case KindParse:
		return "parse"
	default:
		return "unknown"
	}
}

// FetchError is returned by Source implementations.
type FetchError struct {
	Kind   Kind
	WorkID string
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	msg := fmt.Sprintf("fetching work %s: %s", e.WorkID, e.Kind)
	if e.Status != 0 {
		msg += fmt.Sprintf(" (HTTP %d)", e.Status)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// IsConnectivity reports whether err should abort a batch run.
func IsConnectivity(err error) bool {
	return kindOf(err) == KindConnectivity
}

// IsNotFound reports whether err means the work does not exist upstream.
func IsNotFound(err error) bool {
	return kindOf(err) == KindNotFound
}

func kindOf(err error) Kind {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return 0
}
