package driver

import (
	"context"
	"encoding/binary"
	"net"
	"net/netip"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mellowdrifter/rtrpkic/internal/protocol"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testLogger(t *testing.T) *zap.SugaredLogger {
	t.Helper()
	l, err := zap.NewDevelopment()
	require.NoError(t, err)
	return l.Sugar()
}

func cacheResponseBytes(session uint16) []byte {
	buf := make([]byte, 8)
	buf[0] = protocol.Version
	buf[1] = byte(protocol.KindCacheResponse)
	binary.BigEndian.PutUint16(buf[2:4], session)
	binary.BigEndian.PutUint32(buf[4:8], 8)
	return buf
}

func ipv4PrefixBytes(announce bool, prefixLen, maxLen uint8, addr [4]byte, asn uint32) []byte {
	buf := make([]byte, 20)
	buf[0] = protocol.Version
	buf[1] = byte(protocol.KindIPv4Prefix)
	binary.BigEndian.PutUint32(buf[4:8], 20)
	if announce {
		buf[8] = 1
	}
	buf[9] = prefixLen
	buf[10] = maxLen
	copy(buf[12:16], addr[:])
	binary.BigEndian.PutUint32(buf[16:20], asn)
	return buf
}

func endOfDataBytes(serial, refresh, retry, expire uint32) []byte {
	buf := make([]byte, 24)
	buf[0] = protocol.Version
	buf[1] = byte(protocol.KindEndOfData)
	binary.BigEndian.PutUint32(buf[4:8], 24)
	binary.BigEndian.PutUint32(buf[8:12], serial)
	binary.BigEndian.PutUint32(buf[12:16], refresh)
	binary.BigEndian.PutUint32(buf[16:20], retry)
	binary.BigEndian.PutUint32(buf[20:24], expire)
	return buf
}

// TestDriver_ResetQueryThenJournal runs a single connection cycle against a
// fake cache: the driver issues a ResetQuery (it has no usable state), the
// fake cache answers with CacheResponse + one announce + EndOfData, and the
// driver is expected to journal the delta and the snapshot before the test
// cancels its context.
func TestDriver_ResetQueryThenJournal(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	serverErr := make(chan error, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			serverErr <- err
			return
		}
		defer conn.Close()

		// Expect an 8-byte ResetQuery.
		req := make([]byte, 8)
		if _, err := conn.Read(req); err != nil {
			serverErr <- err
			return
		}
		if protocol.Kind(req[1]) != protocol.KindResetQuery {
			serverErr <- net.ErrClosed
			return
		}

		var resp []byte
		resp = append(resp, cacheResponseBytes(7)...)
		resp = append(resp, ipv4PrefixBytes(true, 24, 24, [4]byte{192, 0, 2, 0}, 64500)...)
		resp = append(resp, endOfDataBytes(1, 3600, 600, 7200)...)
		if _, err := conn.Write(resp); err != nil {
			serverErr <- err
			return
		}

		serverErr <- nil
		// Keep the connection open until the test cancels the driver;
		// reading will then fail and runConnection will return.
		io := make([]byte, 1)
		conn.Read(io)
	}()

	host, port, err := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, err)

	dataDir := t.TempDir()
	d := New(Config{
		Host:         host,
		Port:         port,
		PollInterval: 1500 * time.Millisecond,
		DataDir:      dataDir,
	}, testLogger(t))

	ctx, cancel := context.WithTimeout(context.Background(), 6*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	require.NoError(t, <-serverErr)

	want := netip.MustParsePrefix("192.0.2.0/24")
	require.Eventually(t, func() bool {
		entries := d.Table().Lookup(want, false)
		return len(entries) == 1
	}, 2*time.Second, 20*time.Millisecond)

	snapshotPath := filepath.Join(dataDir, "routingtable.json")
	require.Eventually(t, func() bool {
		_, err := os.Stat(snapshotPath)
		return err == nil
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	<-done
}
