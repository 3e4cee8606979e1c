package protocol

import "net/netip"

// SerialNotifyPDU tells the client a new serial is available.
//
//	0          8          16         24        31
//	.-------------------------------------------.
//	| Protocol |   PDU    |                     |
//	| Version  |   Type   |     Session ID      |
//	|    X     |    0     |                     |
//	+-------------------------------------------+
//	|                 Length=12                 |
//	+-------------------------------------------+
//	|               Serial Number               |
//	`-------------------------------------------'
type SerialNotifyPDU struct {
	Version   uint8
	SessionID uint16
	Serial    uint32
}

func (SerialNotifyPDU) Kind() Kind { return KindSerialNotify }

// SerialQueryPDU is emitted by the client to ask for the diff since Serial.
type SerialQueryPDU struct {
	Version   uint8
	SessionID uint16
	Serial    uint32
}

func (SerialQueryPDU) Kind() Kind { return KindSerialQuery }

// ResetQueryPDU is emitted by the client to ask for the full ROA set.
type ResetQueryPDU struct {
	Version uint8
}

func (ResetQueryPDU) Kind() Kind { return KindResetQuery }

// CacheResponsePDU begins a reset or incremental response.
type CacheResponsePDU struct {
	Version   uint8
	SessionID uint16
}

func (CacheResponsePDU) Kind() Kind { return KindCacheResponse }

// PrefixPDU is a single IPv4 or IPv6 ROA announcement or withdrawal,
// unified on netip.Addr rather than two separate raw-byte-array structs.
type PrefixPDU struct {
	Version   uint8
	Announce  bool
	PrefixLen uint8
	MaxLen    uint8
	Prefix    netip.Addr
	ASN       uint32
}

func (p PrefixPDU) Kind() Kind {
	if p.Prefix.Is4() {
		return KindIPv4Prefix
	}
	return KindIPv6Prefix
}

// EndOfDataPDU closes a reset or incremental response and carries the
// cache's timers.
type EndOfDataPDU struct {
	Version   uint8
	SessionID uint16
	Serial    uint32
	Refresh   uint32
	Retry     uint32
	Expire    uint32
}

func (EndOfDataPDU) Kind() Kind { return KindEndOfData }

// CacheResetPDU tells the client its serial is no longer valid; the client
// must issue a ResetQuery.
type CacheResetPDU struct {
	Version uint8
}

func (CacheResetPDU) Kind() Kind { return KindCacheReset }

// RouterKeyPDU carries a router's SKI/ASN/SPKI. Parsed and kept available
// for callers that want it; never applied to the prefix table.
type RouterKeyPDU struct {
	Version  uint8
	Announce bool
	SKI      [20]byte
	ASN      uint32
	SPKI     []byte
}

func (RouterKeyPDU) Kind() Kind { return KindRouterKey }

// ErrorReportPDU is a fatal protocol error surfaced by the cache.
type ErrorReportPDU struct {
	Version         uint8
	Code            uint16
	EncapsulatedPDU []byte
	Text            string
}

func (ErrorReportPDU) Kind() Kind { return KindErrorReport }

// ReservedPDU is any PDU type the client does not interpret (ASPA and
// future extensions). It is kept only so the caller can log and skip it.
type ReservedPDU struct {
	Version uint8
	RawKind uint8
	Payload []byte
}

func (ReservedPDU) Kind() Kind { return KindReserved }
