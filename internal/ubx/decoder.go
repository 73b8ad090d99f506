package ubx

type decodeState uint8

const (
	stSync1 decodeState = iota
	stSync2
	stClass
	stID
	stLenLo
	stLenHi
	stPayload
	stCkA
	stCkB
)

// Decoder turns a raw byte stream into validated frames. It never reports
// errors: bad sync, overlong length or checksum mismatch restart the search
// for the next sync sequence.
type Decoder struct {
	state   decodeState
	class   byte
	id      byte
	length  uint16
	n       uint16
	ckA     byte
	ckB     byte
	payload [MaxPayload]byte
}

// Reset drops any partially decoded frame.
func (d *Decoder) Reset() {
	d.state = stSync1
}

func (d *Decoder) sum(b byte) {
	d.ckA += b
	d.ckB += d.ckA
}

// HandleByte consumes one byte and reports a message when it completes a
// valid frame. The returned payload is a copy owned by the caller.
func (d *Decoder) HandleByte(b byte) (Message, bool) {
	switch d.state {
	case stSync1:
		if b == Sync1 {
			d.state = stSync2
		}
	case stSync2:
		switch b {
		case Sync2:
			d.ckA, d.ckB = 0, 0
			d.state = stClass
		case Sync1:
		default:
			d.state = stSync1
		}
	case stClass:
		d.class = b
		d.sum(b)
		d.state = stID
	case stID:
		d.id = b
		d.sum(b)
		d.state = stLenLo
	case stLenLo:
		d.length = uint16(b)
		d.sum(b)
		d.state = stLenHi
	case stLenHi:
		d.length |= uint16(b) << 8
		d.sum(b)
		d.n = 0
		switch {
		case d.length > MaxPayload:
			d.state = stSync1
		case d.length == 0:
			d.state = stCkA
		default:
			d.state = stPayload
		}
	case stPayload:
		d.payload[d.n] = b
		d.sum(b)
		d.n++
		if d.n >= d.length {
			d.state = stCkA
		}
	case stCkA:
		if b == d.ckA {
			d.state = stCkB
		} else {
			d.state = stSync1
		}
	case stCkB:
		d.state = stSync1
		if b == d.ckB {
			p := make([]byte, d.length)
			copy(p, d.payload[:d.length])
			return Message{Class: d.class, ID: d.id, Payload: p, CkA: d.ckA, CkB: d.ckB}, true
		}
	}
	return Message{}, false
}

// Feed runs every byte of b through the decoder and calls fn for each
// completed message.
func (d *Decoder) Feed(b []byte, fn func(Message)) {
	for _, v := range b {
		if m, ok := d.HandleByte(v); ok && fn != nil {
			fn(m)
		}
	}
}
