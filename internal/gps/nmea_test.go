package gps

import (
	"fmt"
	"testing"

	nmea "github.com/adrianmo/go-nmea"
)

func nmeaLine(payload string) string {
	ck := byte(0)
	for i := 0; i < len(payload); i++ {
		ck ^= payload[i]
	}
	return fmt.Sprintf("$%s*%02X\r\n", payload, ck)
}

func TestNMEAProbe_SplitChunks(t *testing.T) {
	p := NewNMEAProbe()
	stream := nmeaLine("GPTXT,01,01,02,u-blox ag - www.u-blox.com") +
		nmeaLine("GPRMC,123519,A,4807.038,N,01131.000,E,022.4,084.4,230394,003.1,W")

	for i := 0; i < len(stream); i += 7 {
		end := i + 7
		if end > len(stream) {
			end = len(stream)
		}
		p.Observe([]byte(stream[i:end]))
	}
	if p.Seen() != 2 {
		t.Fatalf("seen=%d want 2", p.Seen())
	}
	if p.Count(nmea.TypeTXT) != 1 || p.Count(nmea.TypeRMC) != 1 {
		t.Fatalf("TXT=%d RMC=%d want 1 1", p.Count(nmea.TypeTXT), p.Count(nmea.TypeRMC))
	}
}

func TestNMEAProbe_IgnoresBinaryAndBadChecksums(t *testing.T) {
	p := NewNMEAProbe()
	// A UBX frame and a long run of binary without newlines.
	p.Observe([]byte{0xB5, 0x62, 0x05, 0x01, 0x02, 0x00, 0x06, 0x00, 0x0E, 0x37})
	bin := make([]byte, 300)
	for i := range bin {
		bin[i] = byte(i)
	}
	p.Observe(bin)

	good := nmeaLine("GPRMC,123519,A,4807.038,N,01131.000,E,022.4,084.4,230394,003.1,W")
	bad := good[:len(good)-4] + "00\r\n"
	p.Observe([]byte(bad))
	if p.Seen() != 0 {
		t.Fatalf("seen=%d want 0", p.Seen())
	}

	// Garbage glued in front of a sentence on the same line.
	p.Observe(append([]byte{0x01, 0x02, 0x03}, []byte(good)...))
	if p.Seen() != 1 {
		t.Fatalf("seen=%d want 1 after a valid sentence", p.Seen())
	}
}
