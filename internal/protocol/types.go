// Package protocol implements the RFC 8210 RPKI-to-Router wire format: PDU
// types, their binary layout, and a buffer-oriented decoder suited to a
// stream that may hand the caller partial frames.
package protocol

import "time"

// Kind identifies the RTR PDU type carried in the second header byte.
type Kind uint8

const (
	KindSerialNotify  Kind = 0
	KindSerialQuery   Kind = 1
	KindResetQuery    Kind = 2
	KindCacheResponse Kind = 3
	KindIPv4Prefix    Kind = 4
	KindIPv6Prefix    Kind = 6
	KindEndOfData     Kind = 7
	KindCacheReset    Kind = 8
	KindRouterKey     Kind = 9
	KindErrorReport   Kind = 10
	// KindReserved covers PDU types the client does not act on: ASPA (11)
	// and anything else a newer cache might send. They are parsed enough
	// to skip cleanly and are never applied.
	KindReserved Kind = 255
)

const (
	// Version is the only protocol version this client ever emits.
	Version uint8 = 1

	headerLength        = 8
	serialQueryLength   = 12
	resetQueryLength    = 8
	cacheResponseLength = 8
	ipv4PrefixLength    = 20
	ipv6PrefixLength    = 32
	endOfDataLength     = 24
	cacheResetLength    = 8
	errorReportMinLen   = 16 // header(8) + encapsulated-len(4) + text-len(4)

	// maxPDULength is a safety cap on ordinary PDU bodies. RouterKey
	// carries a variable-length SPKI blob and is allowed a larger ceiling.
	maxPDULength          = 64 * 1024
	maxRouterKeyPDULength = 1 << 20

	flagAnnounce uint8 = 1
	flagWithdraw uint8 = 0

	// MaxRefreshInterval bounds how long the driver will wait before its
	// next poll, regardless of what the cache advertises in EndOfData.
	MaxRefreshInterval = 60 * time.Second
)

// PDU is any decoded or encodable protocol data unit.
type PDU interface {
	Kind() Kind
}
