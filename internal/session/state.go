// Package session implements the RTR session state machine: serial and
// session-id tracking, the refresh/retry/expire timers, and the delta
// buffer accumulated between a CacheResponse and its EndOfData.
package session

import (
	"net/netip"
	"time"

	"github.com/mellowdrifter/rtrpkic/internal/protocol"
	"github.com/mellowdrifter/rtrpkic/internal/table"
)

// RouteDelta is one announced or withdrawn ROA, as buffered between a
// CacheResponse and the EndOfData that closes it.
type RouteDelta struct {
	Prefix netip.Prefix
	ASN    uint32
	// MaxLen is nil when it equals the prefix length, so the journal
	// omits it rather than writing a redundant field.
	MaxLen *uint8
}

// DeltaBuffer holds the routes seen since the last CacheResponse, in the
// order the cache sent them.
type DeltaBuffer struct {
	Announce []RouteDelta
	Withdraw []RouteDelta
}

func (d *DeltaBuffer) empty() bool {
	return len(d.Announce) == 0 && len(d.Withdraw) == 0
}

// Serials tracks the cache's last fully-applied serial and the latest one
// it has announced.
type Serials struct {
	Cache  uint32
	Latest uint32
}

// EventKind enumerates the outbound signals State.Handle can produce for
// the driver.
type EventKind int

const (
	// EventBeginSerial fires when a CacheResponse opens a new delta
	// accumulation window.
	EventBeginSerial EventKind = iota
	// EventSerialDump fires on EndOfData: the delta buffer for Serial is
	// complete and ready to journal.
	EventSerialDump
	// EventProtocolError fires on a received ErrorReport PDU: fatal to
	// this connection.
	EventProtocolError
)

// Event is one outcome of State.Handle.
type Event struct {
	Kind      EventKind
	Serial    uint32
	SessionID uint16
	Err       error
}

// State is the per-connection RTR session state.
type State struct {
	SessionID *uint16
	Serial    Serials

	RefreshInterval time.Duration
	RetryInterval   time.Duration
	ExpireInterval  time.Duration

	nextRefreshDeadline time.Time
	haveDeadline        bool

	Delta DeltaBuffer

	// StrictSessionReset makes a mismatched session id behave like a
	// CacheReset (force a fresh ResetQuery) instead of the lenient
	// adopt-and-log default.
	StrictSessionReset bool

	table *table.Table

	now func() time.Time
}

// New returns a freshly reset session bound to the given prefix table.
func New(t *table.Table) *State {
	return &State{table: t, now: time.Now}
}

// Reset clears session id and serials, as happens whenever the driver
// issues a ResetQuery (process start, or a CacheReset from the cache).
func (s *State) Reset() {
	s.SessionID = nil
	s.Serial = Serials{}
	s.haveDeadline = false
	s.Delta = DeltaBuffer{}
}

// HaveUsableState reports whether the session holds a session id. The
// serials are not checked here; the driver additionally requires them to
// be non-zero before it sends an incremental SerialQuery rather than a
// full ResetQuery.
func (s *State) HaveUsableState() bool {
	return s.SessionID != nil
}

// TimeRemaining reports whether the next scheduled refresh is still in the
// future. If the deadline has already passed, it arms a short 15s fallback
// so the driver does not spin.
func (s *State) TimeRemaining() bool {
	if !s.haveDeadline {
		return false
	}
	now := s.now()
	if now.Before(s.nextRefreshDeadline) {
		return true
	}
	s.nextRefreshDeadline = now.Add(15 * time.Second)
	return false
}

// NextRefreshDeadline returns the current deadline, for callers (tests,
// the driver's logging) that need the raw value rather than a bool.
func (s *State) NextRefreshDeadline() (time.Time, bool) {
	return s.nextRefreshDeadline, s.haveDeadline
}

func (s *State) armDeadline(refresh time.Duration) {
	capped := refresh
	if capped > protocol.MaxRefreshInterval {
		capped = protocol.MaxRefreshInterval
	}
	s.nextRefreshDeadline = s.now().Add(capped)
	s.haveDeadline = true
}
