// Package reassembler holds the one-slot tail-fragment buffer that sits
// between the socket and the wire codec.
package reassembler

import "github.com/mellowdrifter/rtrpkic/internal/protocol"

// Reassembler prepends any leftover bytes from the previous read to the
// next chunk before handing the combined buffer to protocol.Decode, and
// keeps whatever protocol.Decode did not consume for next time.
type Reassembler struct {
	tail []byte
}

// New returns an empty reassembler.
func New() *Reassembler {
	return &Reassembler{}
}

// Feed combines data with any held fragment, decodes as many whole PDUs as
// are present, and retains the remainder for the next call.
func (r *Reassembler) Feed(data []byte) ([]protocol.PDU, error) {
	buf := data
	if len(r.tail) > 0 {
		buf = make([]byte, 0, len(r.tail)+len(data))
		buf = append(buf, r.tail...)
		buf = append(buf, data...)
	}

	consumed, pdus, err := protocol.Decode(buf)
	if consumed == len(buf) {
		r.tail = nil
	} else {
		r.tail = append([]byte(nil), buf[consumed:]...)
	}
	return pdus, err
}

// Reset clears the held fragment. Called on reconnect.
func (r *Reassembler) Reset() {
	r.tail = nil
}
