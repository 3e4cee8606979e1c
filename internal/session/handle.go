package session

import (
	"fmt"
	"net/netip"
	"time"

	"github.com/mellowdrifter/rtrpkic/internal/protocol"
	"github.com/mellowdrifter/rtrpkic/internal/protocol/v1"
	"go.uber.org/zap"
)

// Handle applies one decoded PDU to the session, mutating Serial,
// SessionID, the refresh timers and the prefix table, and returns any
// events the driver must act on.
//
// The session-id rule: the first session id seen is adopted silently.
// After that, a PDU carrying a different session id is logged as
// "refreshed" and still adopted — unless StrictSessionReset is set, in
// which case a mismatch is treated like a CacheReset.
//
// This client only ever negotiates protocol version 1, so a PDU kind
// version 1 does not define (RouterKey, today) is a cache misbehaving
// rather than a PDU to apply; it is logged and dropped here rather than
// threaded through a dedicated switch case.
func (s *State) Handle(pdu protocol.PDU, logger *zap.SugaredLogger) ([]Event, error) {
	if kind := pdu.Kind(); kind != protocol.KindReserved && !v1.Supports(kind) {
		logger.Warnw("pdu not legal under negotiated protocol version, ignoring", "kind", kind, "version", v1.Number)
		return nil, nil
	}

	switch p := pdu.(type) {

	case protocol.SerialNotifyPDU:
		reset := s.adoptSessionID(p.SessionID, logger)
		if !reset {
			s.Serial.Latest = p.Serial
		}
		return nil, nil

	case protocol.CacheResponsePDU:
		s.adoptSessionID(p.SessionID, logger)
		s.Delta = DeltaBuffer{}
		return []Event{{Kind: EventBeginSerial}}, nil

	case protocol.PrefixPDU:
		s.applyPrefix(p, logger)
		return nil, nil

	case protocol.EndOfDataPDU:
		reset := s.adoptSessionID(p.SessionID, logger)
		if !reset {
			s.Serial.Latest = p.Serial
			s.Serial.Cache = p.Serial
		}
		s.RefreshInterval = time.Duration(p.Refresh) * time.Second
		s.RetryInterval = time.Duration(p.Retry) * time.Second
		s.ExpireInterval = time.Duration(p.Expire) * time.Second
		s.armDeadline(s.RefreshInterval)
		return []Event{{Kind: EventSerialDump, Serial: p.Serial, SessionID: p.SessionID}}, nil

	case protocol.CacheResetPDU:
		// Serials reset, but the session id survives: the driver's next
		// outbound PDU is a ResetQuery, not a fresh session negotiation.
		s.Serial = Serials{}
		s.haveDeadline = false
		s.Delta = DeltaBuffer{}
		return nil, nil

	case protocol.ErrorReportPDU:
		logger.Warnw("error report PDU from cache", "code", p.Code, "text", p.Text)
		return []Event{{Kind: EventProtocolError, Err: fmt.Errorf("cache error %d: %s", p.Code, p.Text)}}, nil

	case protocol.ReservedPDU:
		logger.Debugw("ignoring reserved/unsupported PDU type", "kind", p.RawKind)
		return nil, nil

	default:
		return nil, fmt.Errorf("session: unhandled PDU type %T", pdu)
	}
}

// adoptSessionID updates s.SessionID and reports whether it performed a
// strict reset. Callers must not apply fields from the triggering PDU
// (serial, timers) on top of a reset session: those values belong to the
// untrusted PDU that caused the reset, not to a session the driver has
// re-synchronized.
func (s *State) adoptSessionID(id uint16, logger *zap.SugaredLogger) bool {
	if s.SessionID == nil {
		sid := id
		s.SessionID = &sid
		return false
	}
	if *s.SessionID != id {
		if s.StrictSessionReset {
			logger.Infow("session id changed, forcing reset (strict mode)", "old", *s.SessionID, "new", id)
			s.Reset()
			sid := id
			s.SessionID = &sid
			return true
		}
		logger.Infow("session id refreshed", "old", *s.SessionID, "new", id)
		*s.SessionID = id
	}
	return false
}

// applyPrefix buffers the delta and applies it to the prefix table.
// RouteInconsistency errors (duplicate announce, unknown withdraw) are
// logged and swallowed here, never propagated up to the driver as a
// connection error.
func (s *State) applyPrefix(p protocol.PrefixPDU, logger *zap.SugaredLogger) {
	prefix := netip.PrefixFrom(p.Prefix, int(p.PrefixLen))

	var maxLenPtr *uint8
	if p.MaxLen != p.PrefixLen {
		m := p.MaxLen
		maxLenPtr = &m
	}
	delta := RouteDelta{Prefix: prefix, ASN: p.ASN, MaxLen: maxLenPtr}

	if p.Announce {
		s.Delta.Announce = append(s.Delta.Announce, delta)
		if err := s.table.Announce(prefix, p.ASN, p.MaxLen); err != nil {
			logger.Warnw("route inconsistency", "error", err)
		}
		return
	}

	s.Delta.Withdraw = append(s.Delta.Withdraw, delta)
	if err := s.table.Withdraw(prefix, p.ASN, p.MaxLen); err != nil {
		logger.Warnw("route inconsistency", "error", err)
	}
}

// DeltaBufferSnapshot returns the accumulated delta buffer and clears it,
// as happens at each journal write.
func (s *State) DeltaBufferSnapshot() DeltaBuffer {
	d := s.Delta
	s.Delta = DeltaBuffer{}
	return d
}

// IsDeltaBufferEmpty reports whether there is anything to journal.
func (s *State) IsDeltaBufferEmpty() bool {
	return s.Delta.empty()
}
