package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"net/netip"
)

// ErrMalformedPDU is the sentinel wrapped by every decode failure that is
// not simply "not enough bytes yet".
var ErrMalformedPDU = errors.New("malformed PDU")

// Decode consumes as many whole PDUs as are present in data and returns how
// many bytes they occupied. The remainder (a partial PDU, or nothing) is
// left for the caller to prepend to the next read — see internal/reassembler.
//
// Decode never consumes a partial PDU: if fewer than 8 bytes are available,
// or the header is present but fewer than header.length bytes follow, it
// returns what it has already consumed with a nil error. It returns
// ErrMalformedPDU as soon as it finds a PDU it cannot interpret; consumed
// reflects only the PDUs fully parsed before that point.
func Decode(data []byte) (consumed int, pdus []PDU, err error) {
	for {
		remaining := data[consumed:]
		if len(remaining) < headerLength {
			return consumed, pdus, nil
		}

		version := remaining[0]
		rawKind := remaining[1]
		field16 := binary.BigEndian.Uint16(remaining[2:4])
		length := binary.BigEndian.Uint32(remaining[4:8])

		if length < headerLength {
			return consumed, pdus, fmt.Errorf("%w: length %d below header size", ErrMalformedPDU, length)
		}
		cap := uint32(maxPDULength)
		if Kind(rawKind) == KindRouterKey {
			cap = maxRouterKeyPDULength
		}
		if length > cap {
			return consumed, pdus, fmt.Errorf("%w: length %d exceeds cap %d", ErrMalformedPDU, length, cap)
		}

		if uint32(len(remaining)) < length {
			return consumed, pdus, nil
		}

		body := remaining[headerLength:length]
		pdu, err := decodePDU(version, rawKind, field16, body, length)
		if err != nil {
			return consumed, pdus, err
		}

		pdus = append(pdus, pdu)
		consumed += int(length)
	}
}

func decodePDU(version, rawKind uint8, field16 uint16, body []byte, length uint32) (PDU, error) {
	switch Kind(rawKind) {
	case KindSerialNotify:
		if length != serialQueryLength {
			return nil, fmt.Errorf("%w: SerialNotify length %d", ErrMalformedPDU, length)
		}
		return SerialNotifyPDU{Version: version, SessionID: field16, Serial: binary.BigEndian.Uint32(body)}, nil

	case KindSerialQuery:
		if length != serialQueryLength {
			return nil, fmt.Errorf("%w: SerialQuery length %d", ErrMalformedPDU, length)
		}
		return SerialQueryPDU{Version: version, SessionID: field16, Serial: binary.BigEndian.Uint32(body)}, nil

	case KindResetQuery:
		if length != resetQueryLength {
			return nil, fmt.Errorf("%w: ResetQuery length %d", ErrMalformedPDU, length)
		}
		return ResetQueryPDU{Version: version}, nil

	case KindCacheResponse:
		if length != cacheResponseLength {
			return nil, fmt.Errorf("%w: CacheResponse length %d", ErrMalformedPDU, length)
		}
		return CacheResponsePDU{Version: version, SessionID: field16}, nil

	case KindIPv4Prefix:
		if length != ipv4PrefixLength {
			return nil, fmt.Errorf("%w: IPv4Prefix length %d", ErrMalformedPDU, length)
		}
		return decodePrefixPDU(version, body, 4)

	case KindIPv6Prefix:
		if length != ipv6PrefixLength {
			return nil, fmt.Errorf("%w: IPv6Prefix length %d", ErrMalformedPDU, length)
		}
		return decodePrefixPDU(version, body, 16)

	case KindEndOfData:
		if length != endOfDataLength {
			return nil, fmt.Errorf("%w: EndOfData length %d", ErrMalformedPDU, length)
		}
		return EndOfDataPDU{
			Version:   version,
			SessionID: field16,
			Serial:    binary.BigEndian.Uint32(body[0:4]),
			Refresh:   binary.BigEndian.Uint32(body[4:8]),
			Retry:     binary.BigEndian.Uint32(body[8:12]),
			Expire:    binary.BigEndian.Uint32(body[12:16]),
		}, nil

	case KindCacheReset:
		if length != cacheResetLength {
			return nil, fmt.Errorf("%w: CacheReset length %d", ErrMalformedPDU, length)
		}
		return CacheResetPDU{Version: version}, nil

	case KindRouterKey:
		if len(body) < 24 {
			return nil, fmt.Errorf("%w: RouterKey too short: %d bytes", ErrMalformedPDU, len(body))
		}
		rk := RouterKeyPDU{
			Version:  version,
			Announce: (field16>>8)&0x1 == flagAnnounce,
			ASN:      binary.BigEndian.Uint32(body[20:24]),
		}
		copy(rk.SKI[:], body[0:20])
		if len(body) > 24 {
			rk.SPKI = append([]byte(nil), body[24:]...)
		}
		return rk, nil

	case KindErrorReport:
		if length < errorReportMinLen {
			return nil, fmt.Errorf("%w: ErrorReport length %d", ErrMalformedPDU, length)
		}
		pduLen := binary.BigEndian.Uint32(body[0:4])
		if pduLen > uint32(len(body)) || uint32(len(body)) < 4+pduLen+4 {
			return nil, fmt.Errorf("%w: ErrorReport encapsulated length %d overruns PDU", ErrMalformedPDU, pduLen)
		}
		encapsulated := body[4 : 4+pduLen]
		textLen := binary.BigEndian.Uint32(body[4+pduLen : 4+pduLen+4])
		textStart := 4 + pduLen + 4
		if textLen > uint32(len(body)) || uint32(len(body)) < textStart+textLen {
			return nil, fmt.Errorf("%w: ErrorReport text length %d overruns PDU", ErrMalformedPDU, textLen)
		}
		return ErrorReportPDU{
			Version:         version,
			Code:            field16,
			EncapsulatedPDU: append([]byte(nil), encapsulated...),
			Text:            string(body[textStart : textStart+textLen]),
		}, nil

	default:
		return ReservedPDU{Version: version, RawKind: rawKind, Payload: append([]byte(nil), body...)}, nil
	}
}

func decodePrefixPDU(version uint8, body []byte, width int) (PDU, error) {
	flags := body[0]
	prefixLen := body[1]
	maxLen := body[2]
	// body[3] is reserved/zero.

	maxWidth := uint8(width * 8)
	if maxLen > maxWidth {
		return nil, fmt.Errorf("%w: maxLen %d exceeds address width %d", ErrMalformedPDU, maxLen, maxWidth)
	}
	if prefixLen > maxLen {
		return nil, fmt.Errorf("%w: prefixLen %d exceeds maxLen %d", ErrMalformedPDU, prefixLen, maxLen)
	}
	if prefixLen > maxWidth {
		return nil, fmt.Errorf("%w: prefixLen %d exceeds address width %d", ErrMalformedPDU, prefixLen, maxWidth)
	}

	addrBytes := body[4 : 4+width]
	asn := binary.BigEndian.Uint32(body[4+width : 8+width])

	var addr netip.Addr
	if width == 4 {
		addr = netip.AddrFrom4([4]byte(addrBytes))
	} else {
		addr = netip.AddrFrom16([16]byte(addrBytes))
	}

	return PrefixPDU{
		Version:   version,
		Announce:  flags&0x1 == flagAnnounce,
		PrefixLen: prefixLen,
		MaxLen:    maxLen,
		Prefix:    addr,
		ASN:       asn,
	}, nil
}
