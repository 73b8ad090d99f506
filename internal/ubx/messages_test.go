package ubx

import (
	"encoding/binary"
	"testing"
)

func putInt32(b []byte, v int32) { binary.LittleEndian.PutUint32(b, uint32(v)) }

func TestParseNavPayloads(t *testing.T) {
	pos := make([]byte, lenPosLLH)
	binary.LittleEndian.PutUint32(pos[0:], 1000)
	putInt32(pos[4:], -1220000000)
	binary.LittleEndian.PutUint32(pos[8:], 375000000)
	putInt32(pos[16:], -1500)
	binary.LittleEndian.PutUint32(pos[24:], 2500)

	p, err := ParsePosLLH(pos)
	if err != nil {
		t.Fatalf("ParsePosLLH() error: %v", err)
	}
	if p.ITOW != 1000 || p.Lon != -1220000000 || p.Lat != 375000000 || p.HMSL != -1500 || p.VAcc != 2500 {
		t.Fatalf("posllh=%+v", p)
	}

	sol := make([]byte, lenSol)
	binary.LittleEndian.PutUint32(sol[0:], 1000)
	sol[10] = 3
	sol[47] = 9
	s, err := ParseSol(sol)
	if err != nil {
		t.Fatalf("ParseSol() error: %v", err)
	}
	if s.GPSFix != 3 || s.NumSV != 9 {
		t.Fatalf("sol=%+v", s)
	}

	vel := make([]byte, lenVelNED)
	putInt32(vel[12:], -250)
	binary.LittleEndian.PutUint32(vel[20:], 1200)
	v, err := ParseVelNED(vel)
	if err != nil {
		t.Fatalf("ParseVelNED() error: %v", err)
	}
	if v.VelD != -250 || v.GSpeed != 1200 {
		t.Fatalf("velned=%+v", v)
	}

	tu := make([]byte, lenTimeUTC)
	putInt32(tu[8:], -5000)
	binary.LittleEndian.PutUint16(tu[12:], 2024)
	tu[14], tu[15], tu[16], tu[17], tu[18] = 6, 30, 23, 59, 58
	ts, err := ParseTimeUTC(tu)
	if err != nil {
		t.Fatalf("ParseTimeUTC() error: %v", err)
	}
	if ts.Nano != -5000 || ts.Year != 2024 || ts.Month != 6 || ts.Day != 30 || ts.Sec != 58 {
		t.Fatalf("timeutc=%+v", ts)
	}
}

func TestParseShortPayload(t *testing.T) {
	if _, err := ParseSol(make([]byte, 10)); err == nil {
		t.Fatalf("expected error for short nav-sol")
	}
	if _, err := ParseAck(nil); err == nil {
		t.Fatalf("expected error for short ack")
	}
}

func TestMarshalSizes(t *testing.T) {
	cases := []struct {
		name string
		v    any
		want int
	}{
		{"prt", CfgPrtPayload{}, 20},
		{"msg", CfgMsgPayload{}, 3},
		{"rate", CfgRatePayload{}, 6},
		{"nav5", CfgNav5Payload{}, 36},
		{"rst", CfgRstPayload{}, 4},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b, err := Marshal(ClassCFG, 0, tc.v)
			if err != nil {
				t.Fatalf("Marshal() error: %v", err)
			}
			if got := len(b) - 8; got != tc.want {
				t.Fatalf("payload len=%d want %d", got, tc.want)
			}
		})
	}
}
