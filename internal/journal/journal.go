// Package journal persists session.DeltaBuffer and table.Snapshot to disk:
// one JSON file per serial advance, plus an overwritten full snapshot.
package journal

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mellowdrifter/rtrpkic/internal/session"
	"github.com/mellowdrifter/rtrpkic/internal/table"
	"go.uber.org/zap"
)

// SnapshotFileName is the full-table snapshot written after every serial
// advance.
const SnapshotFileName = "routingtable.json"

type routeEntry struct {
	IP     string `json:"ip"`
	ASN    uint32 `json:"asn"`
	MaxLen *uint8 `json:"maxLen,omitempty"`
}

type deltaRoutes struct {
	Announce []routeEntry `json:"announce"`
	Withdraw []routeEntry `json:"withdraw"`
}

type deltaDoc struct {
	Serial    uint32      `json:"serial"`
	SessionID uint16      `json:"session_id"`
	Routes    deltaRoutes `json:"routes"`
}

// Writer owns the data/ directory tree: per-serial delta files under
// data/YYYY-MM/ and the rolling data/routingtable.json snapshot.
type Writer struct {
	baseDir string
	logger  *zap.SugaredLogger
	now     func() time.Time
}

// New returns a Writer rooted at baseDir (created on first write).
func New(baseDir string, logger *zap.SugaredLogger) *Writer {
	return &Writer{baseDir: baseDir, logger: logger, now: time.Now}
}

// WriteDelta writes one per-serial delta file and returns its path. Callers
// should only call this when the delta buffer is non-empty — an empty
// delta has nothing worth writing and should be skipped entirely.
func (w *Writer) WriteDelta(serial uint32, sessionID uint16, delta session.DeltaBuffer) (string, error) {
	stamp := w.now().Format("2006-01-02-150405")
	monthDir := filepath.Join(w.baseDir, w.now().Format("2006-01"))
	if err := os.MkdirAll(monthDir, 0o755); err != nil {
		return "", fmt.Errorf("journal: mkdir %s: %w", monthDir, err)
	}

	name := fmt.Sprintf("%s.routes.%08d.%08d.json", stamp, sessionID, serial)
	path := filepath.Join(monthDir, name)

	doc := deltaDoc{
		Serial:    serial,
		SessionID: sessionID,
		Routes: deltaRoutes{
			Announce: toRouteEntries(delta.Announce),
			Withdraw: toRouteEntries(delta.Withdraw),
		},
	}

	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("journal: marshal delta: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return "", fmt.Errorf("journal: write %s: %w", path, err)
	}

	w.logger.Infow("wrote delta journal", "path", path, "announce", len(doc.Routes.Announce), "withdraw", len(doc.Routes.Withdraw))
	return path, nil
}

// WriteSnapshot overwrites the full-table snapshot.
func (w *Writer) WriteSnapshot(snap table.Snapshot) error {
	if err := os.MkdirAll(w.baseDir, 0o755); err != nil {
		return fmt.Errorf("journal: mkdir %s: %w", w.baseDir, err)
	}
	b, err := snap.Marshal()
	if err != nil {
		return fmt.Errorf("journal: marshal snapshot: %w", err)
	}
	path := filepath.Join(w.baseDir, SnapshotFileName)
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("journal: write %s: %w", path, err)
	}
	w.logger.Debugw("wrote routing table snapshot", "path", path)
	return nil
}

// OpenRawCapture opens (creating if absent) the raw wire capture file for
// this run, named with the start timestamp. The returned writer is
// suitable for netconn.Conn.SetCapture.
func (w *Writer) OpenRawCapture() (*os.File, error) {
	if err := os.MkdirAll(w.baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("journal: mkdir %s: %w", w.baseDir, err)
	}
	stamp := w.now().Format("2006-01-02-150405")
	path := filepath.Join(w.baseDir, fmt.Sprintf("%s-raw-data.bin", stamp))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("journal: open raw capture %s: %w", path, err)
	}
	w.logger.Infow("raw capture enabled", "path", path)
	return f, nil
}

func toRouteEntries(deltas []session.RouteDelta) []routeEntry {
	out := make([]routeEntry, 0, len(deltas))
	for _, d := range deltas {
		out = append(out, routeEntry{
			IP:     d.Prefix.String(),
			ASN:    d.ASN,
			MaxLen: d.MaxLen,
		})
	}
	return out
}
