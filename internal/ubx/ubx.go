// Package ubx implements the u-blox UBX binary protocol subset used by the
// instrument: frame decoding, frame encoding, the navigation payload layouts
// and the receiver configuration handshake.
package ubx

// Frame layout: 0xB5 0x62 | class | id | length (LE u16) | payload | ck_a | ck_b.
const (
	Sync1 = 0xB5
	Sync2 = 0x62

	// MaxPayload bounds the decoder's payload buffer; longer frames resync.
	MaxPayload = 64
)

// Message classes.
const (
	ClassNAV  = 0x01
	ClassACK  = 0x05
	ClassCFG  = 0x06
	ClassNMEA = 0xF0
)

// Message ids.
const (
	NavPosLLH  = 0x02
	NavStatus  = 0x03
	NavSol     = 0x06
	NavVelNED  = 0x12
	NavTimeUTC = 0x21

	AckNak = 0x00
	AckAck = 0x01

	CfgPrt  = 0x00
	CfgMsg  = 0x01
	CfgRst  = 0x04
	CfgRate = 0x08
	CfgNav5 = 0x24

	NmeaGGA = 0x00
	NmeaGLL = 0x01
	NmeaGSA = 0x02
	NmeaGSV = 0x03
	NmeaRMC = 0x04
	NmeaVTG = 0x05
)

// Message is one validated frame.
type Message struct {
	Class   byte
	ID      byte
	Payload []byte
	CkA     byte
	CkB     byte
}

// Checksum computes the two-accumulator Fletcher sum over b.
func Checksum(b []byte) (ckA, ckB byte) {
	for _, v := range b {
		ckA += v
		ckB += ckA
	}
	return ckA, ckB
}

// Encode frames payload as a UBX message.
func Encode(class, id byte, payload []byte) []byte {
	n := len(payload)
	out := make([]byte, 0, n+8)
	out = append(out, Sync1, Sync2, class, id, byte(n), byte(n>>8))
	out = append(out, payload...)
	a, b := Checksum(out[2:])
	return append(out, a, b)
}
