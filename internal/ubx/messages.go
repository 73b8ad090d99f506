package ubx

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// PosLLH is NAV-POSLLH.
type PosLLH struct {
	ITOW   uint32 // ms
	Lon    int32  // 1e-7 deg
	Lat    int32  // 1e-7 deg
	Height int32  // mm
	HMSL   int32  // mm
	HAcc   uint32 // mm
	VAcc   uint32 // mm
}

// Sol is the subset of NAV-SOL the instrument uses.
type Sol struct {
	ITOW   uint32
	GPSFix uint8
	Flags  uint8
	NumSV  uint8
}

// VelNED is NAV-VELNED.
type VelNED struct {
	ITOW    uint32
	VelN    int32  // cm/s
	VelE    int32  // cm/s
	VelD    int32  // cm/s
	Speed   uint32 // cm/s
	GSpeed  uint32 // cm/s
	Heading int32  // 1e-5 deg
	SAcc    uint32 // cm/s
	CAcc    uint32 // 1e-5 deg
}

// TimeUTC is NAV-TIMEUTC.
type TimeUTC struct {
	ITOW  uint32
	TAcc  uint32
	Nano  int32
	Year  uint16
	Month uint8
	Day   uint8
	Hour  uint8
	Min   uint8
	Sec   uint8
	Valid uint8
}

// Ack is the payload of ACK-ACK and ACK-NAK.
type Ack struct {
	Class byte
	ID    byte
}

const (
	lenPosLLH  = 28
	lenSol     = 52
	lenVelNED  = 36
	lenTimeUTC = 20
	lenAck     = 2
)

var le = binary.LittleEndian

func short(name string, got, want int) error {
	return fmt.Errorf("ubx: %s payload %d bytes, want %d", name, got, want)
}

func ParsePosLLH(p []byte) (PosLLH, error) {
	if len(p) < lenPosLLH {
		return PosLLH{}, short("nav-posllh", len(p), lenPosLLH)
	}
	return PosLLH{
		ITOW:   le.Uint32(p[0:]),
		Lon:    int32(le.Uint32(p[4:])),
		Lat:    int32(le.Uint32(p[8:])),
		Height: int32(le.Uint32(p[12:])),
		HMSL:   int32(le.Uint32(p[16:])),
		HAcc:   le.Uint32(p[20:]),
		VAcc:   le.Uint32(p[24:]),
	}, nil
}

func ParseSol(p []byte) (Sol, error) {
	if len(p) < lenSol {
		return Sol{}, short("nav-sol", len(p), lenSol)
	}
	return Sol{
		ITOW:   le.Uint32(p[0:]),
		GPSFix: p[10],
		Flags:  p[11],
		NumSV:  p[47],
	}, nil
}

func ParseVelNED(p []byte) (VelNED, error) {
	if len(p) < lenVelNED {
		return VelNED{}, short("nav-velned", len(p), lenVelNED)
	}
	return VelNED{
		ITOW:    le.Uint32(p[0:]),
		VelN:    int32(le.Uint32(p[4:])),
		VelE:    int32(le.Uint32(p[8:])),
		VelD:    int32(le.Uint32(p[12:])),
		Speed:   le.Uint32(p[16:]),
		GSpeed:  le.Uint32(p[20:]),
		Heading: int32(le.Uint32(p[24:])),
		SAcc:    le.Uint32(p[28:]),
		CAcc:    le.Uint32(p[32:]),
	}, nil
}

func ParseTimeUTC(p []byte) (TimeUTC, error) {
	if len(p) < lenTimeUTC {
		return TimeUTC{}, short("nav-timeutc", len(p), lenTimeUTC)
	}
	return TimeUTC{
		ITOW:  le.Uint32(p[0:]),
		TAcc:  le.Uint32(p[4:]),
		Nano:  int32(le.Uint32(p[8:])),
		Year:  le.Uint16(p[12:]),
		Month: p[14],
		Day:   p[15],
		Hour:  p[16],
		Min:   p[17],
		Sec:   p[18],
		Valid: p[19],
	}, nil
}

func ParseAck(p []byte) (Ack, error) {
	if len(p) < lenAck {
		return Ack{}, short("ack", len(p), lenAck)
	}
	return Ack{Class: p[0], ID: p[1]}, nil
}

// Configuration payloads. Field order and widths match the receiver's wire
// layout so encoding/binary can pack them directly.

type CfgPrtPayload struct {
	PortID       uint8
	Reserved0    uint8
	TxReady      uint16
	Mode         uint32
	BaudRate     uint32
	InProtoMask  uint16
	OutProtoMask uint16
	Flags        uint16
	Reserved5    uint16
}

type CfgMsgPayload struct {
	MsgClass uint8
	MsgID    uint8
	Rate     uint8
}

type CfgRatePayload struct {
	MeasRate uint16
	NavRate  uint16
	TimeRef  uint16
}

type CfgNav5Payload struct {
	Mask             uint16
	DynModel         uint8
	FixMode          uint8
	FixedAlt         int32
	FixedAltVar      uint32
	MinElev          int8
	DrLimit          uint8
	PDop             uint16
	TDop             uint16
	PAcc             uint16
	TAcc             uint16
	StaticHoldThresh uint8
	DgpsTimeOut      uint8
	Reserved2        uint32
	Reserved3        uint32
	Reserved4        uint32
}

type CfgRstPayload struct {
	NavBbrMask uint16
	ResetMode  uint8
	Reserved1  uint8
}

// Marshal packs a fixed-size payload struct and frames it.
func Marshal(class, id byte, v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := binary.Write(&buf, le, v); err != nil {
		return nil, fmt.Errorf("ubx: marshal %02x-%02x: %w", class, id, err)
	}
	return Encode(class, id, buf.Bytes()), nil
}
