package journal

import (
	"encoding/json"
	"net/netip"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mellowdrifter/rtrpkic/internal/session"
	"github.com/mellowdrifter/rtrpkic/internal/table"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testWriter(t *testing.T) (*Writer, string) {
	t.Helper()
	dir := t.TempDir()
	l, err := zap.NewDevelopment()
	require.NoError(t, err)
	w := New(dir, l.Sugar())
	w.now = func() time.Time { return time.Date(2026, 7, 31, 9, 30, 15, 0, time.UTC) }
	return w, dir
}

func TestWriteDelta_CreatesExpectedPathAndShape(t *testing.T) {
	w, dir := testWriter(t)
	maxLen := uint8(24)
	delta := session.DeltaBuffer{
		Announce: []session.RouteDelta{
			{Prefix: netip.MustParsePrefix("192.0.2.0/24"), ASN: 64500, MaxLen: &maxLen},
			{Prefix: netip.MustParsePrefix("198.51.100.0/24"), ASN: 64501},
		},
		Withdraw: []session.RouteDelta{
			{Prefix: netip.MustParsePrefix("203.0.113.0/24"), ASN: 64502},
		},
	}

	path, err := w.WriteDelta(42, 7, delta)
	require.NoError(t, err)

	want := filepath.Join(dir, "2026-07", "2026-07-31-093015.routes.00000007.00000042.json")
	assert.Equal(t, want, path)

	b, err := os.ReadFile(path)
	require.NoError(t, err)

	var doc deltaDoc
	require.NoError(t, json.Unmarshal(b, &doc))
	assert.Equal(t, uint32(42), doc.Serial)
	assert.Equal(t, uint16(7), doc.SessionID)
	require.Len(t, doc.Routes.Announce, 2)
	require.Len(t, doc.Routes.Withdraw, 1)
	assert.Equal(t, "192.0.2.0/24", doc.Routes.Announce[0].IP)
	require.NotNil(t, doc.Routes.Announce[0].MaxLen)
	assert.Equal(t, uint8(24), *doc.Routes.Announce[0].MaxLen)
	assert.Nil(t, doc.Routes.Announce[1].MaxLen)
}

func TestWriteSnapshot_OverwritesFile(t *testing.T) {
	w, dir := testWriter(t)
	tbl := table.New()
	require.NoError(t, tbl.Announce(netip.MustParsePrefix("192.0.2.0/24"), 64500, 24))

	require.NoError(t, w.WriteSnapshot(tbl.Snapshot()))
	path := filepath.Join(dir, SnapshotFileName)
	b1, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b1), "64500")

	tbl2 := table.New()
	require.NoError(t, w.WriteSnapshot(tbl2.Snapshot()))
	b2, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(b2), "64500")
}

func TestOpenRawCapture_CreatesAppendableFile(t *testing.T) {
	w, dir := testWriter(t)
	f, err := w.OpenRawCapture()
	require.NoError(t, err)
	defer f.Close()

	_, err = f.Write([]byte("abc"))
	require.NoError(t, err)

	path := filepath.Join(dir, "2026-07-31-093015-raw-data.bin")
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "abc", string(b))
}
