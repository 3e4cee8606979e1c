// Package driver implements the session driver: the single cooperative
// control loop that connects, queries, polls, journals, and reconnects.
package driver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net"
	"os"
	"time"

	"github.com/mellowdrifter/rtrpkic/internal/journal"
	"github.com/mellowdrifter/rtrpkic/internal/netconn"
	"github.com/mellowdrifter/rtrpkic/internal/protocol"
	"github.com/mellowdrifter/rtrpkic/internal/protocol/v1"
	"github.com/mellowdrifter/rtrpkic/internal/reassembler"
	"github.com/mellowdrifter/rtrpkic/internal/session"
	"github.com/mellowdrifter/rtrpkic/internal/table"
	"go.uber.org/zap"
)

// recvBufferSize is the per-call recv buffer.
const recvBufferSize = 64 * 1024

// Config parameterizes a Driver.
type Config struct {
	Host               string
	Port               string
	PollInterval       time.Duration
	DataDir            string
	RawCapture         bool
	StrictSessionReset bool
	StartSerial        *uint32
	StartSessionID     *uint16
}

// Driver owns the table, session state, connection and journal writer for
// one long-running client instance.
type Driver struct {
	cfg     Config
	logger  *zap.SugaredLogger
	table   *table.Table
	state   *session.State
	journal *journal.Writer
	reasm   *reassembler.Reassembler
	dialer  *netconn.Dialer
	rng     *rand.Rand
}

// New constructs a Driver, seeding session state from any resume values
// supplied in cfg.
func New(cfg Config, logger *zap.SugaredLogger) *Driver {
	tbl := table.New()
	st := session.New(tbl)
	st.StrictSessionReset = cfg.StrictSessionReset
	if cfg.StartSessionID != nil {
		id := *cfg.StartSessionID
		st.SessionID = &id
	}
	if cfg.StartSerial != nil {
		st.Serial = session.Serials{Cache: *cfg.StartSerial, Latest: *cfg.StartSerial}
	}

	return &Driver{
		cfg:     cfg,
		logger:  logger,
		table:   tbl,
		state:   st,
		journal: journal.New(cfg.DataDir, logger),
		reasm:   reassembler.New(),
		dialer:  &netconn.Dialer{Host: cfg.Host, Port: cfg.Port, Logger: logger},
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Table exposes the live prefix table, e.g. for the "show" reader.
func (d *Driver) Table() *table.Table {
	return d.table
}

// Run blocks until ctx is cancelled or a fatal error occurs (DNS
// resolution failure). Every other failure reconnects.
func (d *Driver) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		conn, err := d.dialer.DialWithBackoff(ctx)
		if err != nil {
			if errors.Is(err, netconn.ErrResolutionFailed) {
				return fmt.Errorf("driver: fatal: %w", err)
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			continue
		}

		var rawFile *os.File
		if d.cfg.RawCapture {
			f, err := d.journal.OpenRawCapture()
			if err != nil {
				d.logger.Warnw("could not open raw capture file", "error", err)
			} else {
				rawFile = f
				conn.SetCapture(f)
			}
		}

		d.reasm.Reset()

		if err := d.runConnection(ctx, conn); err != nil {
			d.logger.Warnw("connection lost, will reconnect", "error", err)
		}
		conn.Close()
		if rawFile != nil {
			rawFile.Close()
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

// runConnection drives one TCP connection to completion: it issues the
// initial query, then loops polling for data or the refresh timeout until
// the connection fails.
func (d *Driver) runConnection(ctx context.Context, conn *netconn.Conn) error {
	if err := d.sendInitialQuery(conn); err != nil {
		return err
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		wait := d.jitteredWait()
		conn.SetReadDeadline(time.Now().Add(wait))

		buf := make([]byte, recvBufferSize)
		n, err := conn.Recv(buf)

		if err != nil && isTimeout(err) {
			if d.state.TimeRemaining() {
				continue
			}
			if err := d.sendInitialQuery(conn); err != nil {
				return err
			}
			continue
		}
		if n == 0 && err != nil {
			return err
		}
		if n == 0 {
			return io.EOF
		}

		pdus, err := d.reasm.Feed(buf[:n])
		if err != nil {
			return fmt.Errorf("driver: malformed pdu: %w", err)
		}

		for _, pdu := range pdus {
			events, err := d.state.Handle(pdu, d.logger)
			if err != nil {
				return fmt.Errorf("driver: session error: %w", err)
			}
			if err := d.handleEvents(events); err != nil {
				return err
			}
		}
	}
}

func (d *Driver) handleEvents(events []session.Event) error {
	for _, ev := range events {
		switch ev.Kind {
		case session.EventSerialDump:
			d.onSerialAdvance(ev.Serial, ev.SessionID)
		case session.EventProtocolError:
			return fmt.Errorf("driver: %w", ev.Err)
		}
	}
	return nil
}

func (d *Driver) onSerialAdvance(serial uint32, sessionID uint16) {
	if !d.state.IsDeltaBufferEmpty() {
		delta := d.state.DeltaBufferSnapshot()
		if _, err := d.journal.WriteDelta(serial, sessionID, delta); err != nil {
			d.logger.Errorw("failed to write delta journal", "error", err)
		}
	}
	if err := d.journal.WriteSnapshot(d.table.Snapshot()); err != nil {
		d.logger.Errorw("failed to write routing table snapshot", "error", err)
	}
}

// sendInitialQuery sends a SerialQuery when the session can resume
// incrementally, and otherwise resets the session and sends a ResetQuery.
// It runs on connect and whenever the refresh timer has expired; zeroed
// serials (after a CacheReset, or a strict-mode session id change) make it
// send a ResetQuery.
func (d *Driver) sendInitialQuery(conn *netconn.Conn) error {
	if d.state.HaveUsableState() && d.state.Serial != (session.Serials{}) {
		return d.sendSerialQuery(conn)
	}
	d.state.Reset()
	return conn.Send(protocol.EncodeResetQuery(v1.Number))
}

func (d *Driver) sendSerialQuery(conn *netconn.Conn) error {
	var sessionID uint16
	if d.state.SessionID != nil {
		sessionID = *d.state.SessionID
	}
	return conn.Send(protocol.EncodeSerialQuery(v1.Number, sessionID, d.state.Serial.Cache))
}

// jitteredWait returns uniform(0.8T, 1.2T), floored at 1s, so a fleet of
// clients polling the same cache doesn't stay lockstep.
func (d *Driver) jitteredWait() time.Duration {
	t := d.cfg.PollInterval
	if t <= 0 {
		t = 300 * time.Second
	}
	lo := float64(t) * 0.8
	span := float64(t) * 0.4
	wait := time.Duration(lo + d.rng.Float64()*span)
	if wait < time.Second {
		wait = time.Second
	}
	return wait
}

// isTimeout reports whether err is a read deadline expiry rather than a
// real connection failure.
func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
