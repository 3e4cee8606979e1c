package session

import (
	"net/netip"
	"testing"

	"github.com/mellowdrifter/rtrpkic/internal/protocol"
	"github.com/mellowdrifter/rtrpkic/internal/table"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testLogger(t *testing.T) *zap.SugaredLogger {
	t.Helper()
	l, err := zap.NewDevelopment()
	require.NoError(t, err)
	return l.Sugar()
}

func mustPrefix(t *testing.T, s string) netip.Prefix {
	t.Helper()
	p, err := netip.ParsePrefix(s)
	require.NoError(t, err)
	return p
}

// A ResetQuery response carries a CacheResponse, one announce, and an
// EndOfData — the session adopts the id, buffers the delta, applies it to
// the table, and emits a SerialDump.
func TestScenario_ResetAnnounceEndOfData(t *testing.T) {
	logger := testLogger(t)
	tbl := table.New()
	s := New(tbl)

	_, err := s.Handle(protocol.CacheResponsePDU{Version: 1, SessionID: 42}, logger)
	require.NoError(t, err)
	require.NotNil(t, s.SessionID)
	assert.Equal(t, uint16(42), *s.SessionID)

	prefix := mustPrefix(t, "192.0.2.0/24")
	_, err = s.Handle(protocol.PrefixPDU{
		Version: 1, Announce: true, PrefixLen: 24, MaxLen: 24,
		Prefix: prefix.Addr(), ASN: 64500,
	}, logger)
	require.NoError(t, err)

	events, err := s.Handle(protocol.EndOfDataPDU{
		Version: 1, SessionID: 42, Serial: 5, Refresh: 3600, Retry: 600, Expire: 7200,
	}, logger)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, EventSerialDump, events[0].Kind)
	assert.Equal(t, uint32(5), events[0].Serial)

	assert.Equal(t, uint32(5), s.Serial.Cache)
	assert.Equal(t, uint32(5), s.Serial.Latest)
	deadline, have := s.NextRefreshDeadline()
	assert.True(t, have)
	assert.False(t, deadline.IsZero())

	entries := tbl.Lookup(prefix, false)
	require.Len(t, entries, 1)
	assert.Equal(t, uint32(64500), entries[0].ASN)

	delta := s.DeltaBufferSnapshot()
	require.Len(t, delta.Announce, 1)
	assert.Equal(t, uint32(64500), delta.Announce[0].ASN)
	assert.True(t, s.IsDeltaBufferEmpty())
}

// Scenario 2: a subsequent SerialQuery response withdraws a route
// previously announced, leaving the table empty again.
func TestScenario_IncrementalWithdraw(t *testing.T) {
	logger := testLogger(t)
	tbl := table.New()
	s := New(tbl)
	prefix := mustPrefix(t, "192.0.2.0/24")

	require.NoError(t, tbl.Announce(prefix, 64500, 24))
	s.SessionID = ptrUint16(42)
	s.Serial = Serials{Cache: 5, Latest: 5}

	_, err := s.Handle(protocol.CacheResponsePDU{Version: 1, SessionID: 42}, logger)
	require.NoError(t, err)

	_, err = s.Handle(protocol.PrefixPDU{
		Version: 1, Announce: false, PrefixLen: 24, MaxLen: 24,
		Prefix: prefix.Addr(), ASN: 64500,
	}, logger)
	require.NoError(t, err)

	events, err := s.Handle(protocol.EndOfDataPDU{
		Version: 1, SessionID: 42, Serial: 6, Refresh: 3600, Retry: 600, Expire: 7200,
	}, logger)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, uint32(6), events[0].Serial)

	assert.Empty(t, tbl.Lookup(prefix, false))

	delta := s.DeltaBufferSnapshot()
	require.Len(t, delta.Withdraw, 1)
}

// Scenario 4: a CacheReset mid-session zeroes both serials but keeps the
// session id, so the driver's next action is a ResetQuery rather than a
// brand new negotiation.
func TestScenario_CacheResetMidSession(t *testing.T) {
	logger := testLogger(t)
	tbl := table.New()
	s := New(tbl)
	s.SessionID = ptrUint16(42)
	s.Serial = Serials{Cache: 5, Latest: 5}
	s.armDeadline(3600)

	events, err := s.Handle(protocol.CacheResetPDU{Version: 1}, logger)
	require.NoError(t, err)
	assert.Empty(t, events)

	assert.Equal(t, Serials{}, s.Serial)
	require.NotNil(t, s.SessionID)
	assert.Equal(t, uint16(42), *s.SessionID)
	_, have := s.NextRefreshDeadline()
	assert.False(t, have)
}

// Scenario 5: a duplicate announce within the same serial is logged, not
// surfaced as a session error — the driver keeps processing the stream.
func TestScenario_DuplicateAnnounceIsNonFatal(t *testing.T) {
	logger := testLogger(t)
	tbl := table.New()
	s := New(tbl)
	prefix := mustPrefix(t, "192.0.2.0/24")

	pdu := protocol.PrefixPDU{
		Version: 1, Announce: true, PrefixLen: 24, MaxLen: 24,
		Prefix: prefix.Addr(), ASN: 64500,
	}

	_, err := s.Handle(pdu, logger)
	require.NoError(t, err)
	_, err = s.Handle(pdu, logger)
	require.NoError(t, err) // non-fatal: Handle itself never errors on this

	entries := tbl.Lookup(prefix, false)
	require.Len(t, entries, 1)

	delta := s.DeltaBufferSnapshot()
	require.Len(t, delta.Announce, 2) // both are still buffered for the journal
}

func TestSessionID_LenientRefreshOnMismatch(t *testing.T) {
	logger := testLogger(t)
	s := New(table.New())
	s.SessionID = ptrUint16(1)
	s.Serial = Serials{Cache: 9, Latest: 9}

	_, err := s.Handle(protocol.SerialNotifyPDU{Version: 1, SessionID: 2, Serial: 10}, logger)
	require.NoError(t, err)

	require.NotNil(t, s.SessionID)
	assert.Equal(t, uint16(2), *s.SessionID)
	assert.Equal(t, uint32(9), s.Serial.Cache) // serial state is untouched by a lenient id change
}

func TestSessionID_StrictResetOnMismatch(t *testing.T) {
	logger := testLogger(t)
	s := New(table.New())
	s.StrictSessionReset = true
	s.SessionID = ptrUint16(1)
	s.Serial = Serials{Cache: 9, Latest: 9}

	_, err := s.Handle(protocol.SerialNotifyPDU{Version: 1, SessionID: 2, Serial: 10}, logger)
	require.NoError(t, err)

	require.NotNil(t, s.SessionID)
	assert.Equal(t, uint16(2), *s.SessionID)
	assert.Equal(t, Serials{}, s.Serial) // strict mode wipes prior serial state on mismatch
}

func TestErrorReport_EmitsProtocolError(t *testing.T) {
	logger := testLogger(t)
	s := New(table.New())

	events, err := s.Handle(protocol.ErrorReportPDU{Version: 1, Code: 2, Text: "no such version"}, logger)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, EventProtocolError, events[0].Kind)
	require.Error(t, events[0].Err)
}

func TestHaveUsableState(t *testing.T) {
	s := New(table.New())
	assert.False(t, s.HaveUsableState())
	s.SessionID = ptrUint16(7)
	assert.True(t, s.HaveUsableState())
}

func ptrUint16(v uint16) *uint16 { return &v }
