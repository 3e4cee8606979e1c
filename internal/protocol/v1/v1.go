// Package v1 describes which PDU types are legal under RTR protocol
// version 1 (RFC 8210's original wire format, before RouterKey/ASPA).
package v1

import "github.com/mellowdrifter/rtrpkic/internal/protocol"

// Number is the protocol version byte this package describes.
const Number uint8 = 1

// Supports reports whether kind is a valid PDU under protocol version 1.
func Supports(kind protocol.Kind) bool {
	switch kind {
	case protocol.KindSerialNotify,
		protocol.KindSerialQuery,
		protocol.KindResetQuery,
		protocol.KindCacheResponse,
		protocol.KindIPv4Prefix,
		protocol.KindIPv6Prefix,
		protocol.KindEndOfData,
		protocol.KindCacheReset,
		protocol.KindErrorReport:
		return true
	default:
		// RouterKey and ASPA are version-2 additions; a version-1 cache
		// should never send them.
		return false
	}
}
