// Package csvlog writes one CSV row per valid fix. Rows are formatted with
// integer arithmetic only, and the write is split into small steps so that
// storage latency never starves the audio producer.
package csvlog

import (
	"fmt"
	"time"

	"flysight-ng/internal/nav"
)

// Header is written once at the top of each log file.
const Header = "time,lat,lon,hMSL,velN,velE,velD,hAcc,vAcc,sAcc,heading,cAcc,gpsFix,numSV\r\n" +
	",(deg),(deg),(m),(m/s),(m/s),(m/s),(m),(m),(m/s),(deg),(deg),,\r\n"

// RowLen bounds the length of one formatted row.
const RowLen = 192

// PutInt writes val right-aligned so that it ends just before buf[end] and
// returns the index of its first byte. The field is written right to left:
// the delimiter, then digits, with a decimal point after dec fraction digits
// when dot is set. At least dec digits are written, so dec also acts as a
// zero-padding width for dot=false fields.
func PutInt(buf []byte, end int, val int32, dec int, dot bool, delim byte) int {
	p := end
	if delim != 0 {
		p--
		buf[p] = delim
	}
	start := p

	v := int64(val)
	if v < 0 {
		v = -v
	}
	for v > 0 || dec > 0 {
		p--
		buf[p] = byte('0' + v%10)
		v /= 10
		dec--
		if dec == 0 && dot {
			p--
			buf[p] = '.'
		}
	}
	if p == start || buf[p] == '.' {
		p--
		buf[p] = '0'
	}
	if val < 0 {
		p--
		buf[p] = '-'
	}
	return p
}

// FormatRow renders f into buf and returns the row, which aliases buf.
func FormatRow(buf *[RowLen]byte, f nav.Fix) []byte {
	b := buf[:]
	p := len(b)

	p--
	b[p] = '\n'
	p = PutInt(b, p, int32(f.NumSV), 0, false, '\r')
	p = PutInt(b, p, int32(f.GPSFix), 0, false, ',')
	p = PutInt(b, p, int32(f.CAcc), 5, true, ',')
	p = PutInt(b, p, f.Heading, 5, true, ',')
	p = PutInt(b, p, int32(f.SAcc), 2, true, ',')
	p = PutInt(b, p, int32(f.VAcc), 3, true, ',')
	p = PutInt(b, p, int32(f.HAcc), 3, true, ',')
	p = PutInt(b, p, f.VelD, 2, true, ',')
	p = PutInt(b, p, f.VelE, 2, true, ',')
	p = PutInt(b, p, f.VelN, 2, true, ',')
	p = PutInt(b, p, f.HMSL, 3, true, ',')
	p = PutInt(b, p, f.Lon, 7, true, ',')
	p = PutInt(b, p, f.Lat, 7, true, ',')
	p--
	b[p] = ','
	p = PutInt(b, p, (f.Nano+5000000)/10000000, 2, false, 'Z')
	p = PutInt(b, p, int32(f.Sec), 2, false, '.')
	p = PutInt(b, p, int32(f.Min), 2, false, ':')
	p = PutInt(b, p, int32(f.Hour), 2, false, ':')
	p = PutInt(b, p, int32(f.Day), 2, false, 'T')
	p = PutInt(b, p, int32(f.Month), 2, false, '-')
	p = PutInt(b, p, int32(f.Year), 4, false, '-')
	return b[p:]
}

// FileName returns the log directory and file name for a session whose
// first fix is f, in local time given by the offset from UTC.
func FileName(f nav.Fix, tzOffset time.Duration) (dir, name string) {
	t := f.Time().Add(tzOffset)
	dir = fmt.Sprintf("%02d-%02d-%02d", t.Year()%100, int(t.Month()), t.Day())
	name = fmt.Sprintf("%02d-%02d-%02d.csv", t.Hour(), t.Minute(), t.Second())
	return dir, name
}
