package nav

import (
	"flysight-ng/internal/ubx"
)

// RingLen is the number of fixes buffered between the aggregator and its
// consumer.
const RingLen = 4

// Received-mask bits, one per message kind making up an epoch.
const (
	gotPosLLH  = 1 << 0
	gotSol     = 1 << 1
	gotVelNED  = 1 << 2
	gotTimeUTC = 1 << 3
	gotAll     = gotPosLLH | gotSol | gotVelNED | gotTimeUTC
)

// Epoch is handed to OnFix when an epoch completes with a 3D fix.
type Epoch struct {
	Fix       Fix
	PrevValid bool  // the previous completed epoch had a 3D fix
	PrevHMSL  int32 // altitude of the previous completed epoch
}

// Aggregator builds fixes from decoded messages. It is owned by the
// foreground loop and is not safe for concurrent use.
type Aggregator struct {
	ring  [RingLen]Fix
	read  uint8
	write uint8

	tow      uint32
	received uint8

	hasFix    bool
	prevValid bool
	prevHMSL  int32

	// OnFix runs before the fix is published to Next.
	OnFix func(Epoch)
	// OnNoFix runs when an epoch completes without a 3D fix.
	OnNoFix func()
}

func (a *Aggregator) current() *Fix {
	return &a.ring[a.write%RingLen]
}

// HandleMessage folds one decoded message into the in-progress fix. Messages
// of other kinds are ignored.
func (a *Aggregator) HandleMessage(m ubx.Message) {
	if m.Class != ubx.ClassNAV {
		return
	}

	// Overrun: drop the oldest unread fix so the slot being written is free.
	if a.read+RingLen == a.write {
		a.read++
	}
	cur := a.current()

	switch m.ID {
	case ubx.NavPosLLH:
		p, err := ubx.ParsePosLLH(m.Payload)
		if err != nil {
			return
		}
		cur.Lon, cur.Lat, cur.HMSL = p.Lon, p.Lat, p.HMSL
		cur.HAcc, cur.VAcc = p.HAcc, p.VAcc
		a.receive(gotPosLLH, p.ITOW)
	case ubx.NavSol:
		s, err := ubx.ParseSol(m.Payload)
		if err != nil {
			return
		}
		cur.GPSFix, cur.NumSV = s.GPSFix, s.NumSV
		a.receive(gotSol, s.ITOW)
	case ubx.NavVelNED:
		v, err := ubx.ParseVelNED(m.Payload)
		if err != nil {
			return
		}
		cur.VelN, cur.VelE, cur.VelD = v.VelN, v.VelE, v.VelD
		cur.Speed, cur.GSpeed, cur.Heading = v.Speed, v.GSpeed, v.Heading
		cur.SAcc, cur.CAcc = v.SAcc, v.CAcc
		a.receive(gotVelNED, v.ITOW)
	case ubx.NavTimeUTC:
		t, err := ubx.ParseTimeUTC(m.Payload)
		if err != nil {
			return
		}
		cur.Nano = t.Nano
		cur.Year, cur.Month, cur.Day = t.Year, t.Month, t.Day
		cur.Hour, cur.Min, cur.Sec = t.Hour, t.Min, t.Sec
		a.receive(gotTimeUTC, t.ITOW)
	}
}

func (a *Aggregator) receive(bit uint8, tow uint32) {
	if tow != a.tow {
		a.tow = tow
		a.received = 0
	}
	a.received |= bit
	if a.received != gotAll {
		return
	}

	cur := a.current()
	if cur.Valid() {
		a.hasFix = true
		if a.OnFix != nil {
			a.OnFix(Epoch{Fix: *cur, PrevValid: a.prevValid, PrevHMSL: a.prevHMSL})
		}
		a.write++
	} else {
		a.hasFix = false
		if a.OnNoFix != nil {
			a.OnNoFix()
		}
	}

	a.prevValid = a.hasFix
	a.prevHMSL = cur.HMSL
	a.received = 0
}

// Next returns the oldest unread fix.
func (a *Aggregator) Next() (Fix, bool) {
	if a.read == a.write {
		return Fix{}, false
	}
	f := a.ring[a.read%RingLen]
	a.read++
	return f, true
}

// Pending reports the number of unread fixes.
func (a *Aggregator) Pending() int {
	return int(a.write - a.read)
}

// HasFix reports whether the most recent completed epoch had a 3D fix.
func (a *Aggregator) HasFix() bool { return a.hasFix }
