package protocol

import "encoding/binary"

// EncodeResetQuery builds the 8-byte ResetQuery PDU the client sends when
// it has no usable serial or session id.
func EncodeResetQuery(version uint8) []byte {
	buf := make([]byte, resetQueryLength)
	buf[0] = version
	buf[1] = byte(KindResetQuery)
	binary.BigEndian.PutUint32(buf[4:8], resetQueryLength)
	return buf
}

// EncodeSerialQuery builds the 12-byte SerialQuery PDU the client sends to
// ask for the diff since serial, on a session identified by sessionID (0 if
// not yet known).
func EncodeSerialQuery(version uint8, sessionID uint16, serial uint32) []byte {
	buf := make([]byte, serialQueryLength)
	buf[0] = version
	buf[1] = byte(KindSerialQuery)
	binary.BigEndian.PutUint16(buf[2:4], sessionID)
	binary.BigEndian.PutUint32(buf[4:8], serialQueryLength)
	binary.BigEndian.PutUint32(buf[8:12], serial)
	return buf
}
