package gps

import (
	"bytes"
	"log"
	"strings"

	nmea "github.com/adrianmo/go-nmea"
)

// NMEAProbe watches the bytes seen during the configuration handshake. A
// receiver fresh from power-on talks NMEA at its default baud rate until the
// port is reconfigured; the probe logs the first valid sentence and any
// TXT banners so a wrong baud rate or a silent receiver is easy to spot.
type NMEAProbe struct {
	line     []byte
	seen     int
	types    map[string]int
	reported bool
}

// maxLine bounds an NMEA sentence; longer runs are binary noise.
const maxLine = 96

func NewNMEAProbe() *NMEAProbe {
	return &NMEAProbe{types: map[string]int{}}
}

// Observe consumes a chunk of raw receiver bytes.
func (p *NMEAProbe) Observe(b []byte) {
	for len(b) > 0 {
		i := bytes.IndexByte(b, '\n')
		if i < 0 {
			p.append(b)
			return
		}
		p.append(b[:i])
		p.sentence(string(p.line))
		p.line = p.line[:0]
		b = b[i+1:]
	}
}

func (p *NMEAProbe) append(b []byte) {
	if len(p.line)+len(b) > maxLine {
		p.line = p.line[:0]
		if j := bytes.LastIndexByte(b, '$'); j >= 0 {
			b = b[j:]
		} else {
			return
		}
	}
	p.line = append(p.line, b...)
}

func (p *NMEAProbe) sentence(line string) {
	line = strings.TrimSpace(line)
	if i := strings.LastIndexByte(line, '$'); i > 0 {
		line = line[i:]
	}
	if !strings.HasPrefix(line, "$") {
		return
	}
	s, err := nmea.Parse(line)
	if err != nil {
		return
	}
	p.seen++
	p.types[s.DataType()]++

	if !p.reported {
		log.Printf("gps: receiver is talking NMEA (%s%s)", s.TalkerID(), s.DataType())
		p.reported = true
	}
	if s.DataType() == nmea.TypeTXT {
		if txt, ok := s.(nmea.TXT); ok {
			log.Printf("gps: receiver says %q", txt.Message)
		}
	}
}

// Seen returns the number of valid sentences observed.
func (p *NMEAProbe) Seen() int { return p.seen }

// Count returns how many sentences of the given type were observed.
func (p *NMEAProbe) Count(dataType string) int { return p.types[dataType] }
