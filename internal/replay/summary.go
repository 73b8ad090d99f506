package replay

import (
	"fmt"
	"io"
	"sort"
	"time"

	"flysight-ng/internal/nav"
	"flysight-ng/internal/ubx"
)

// MsgKey identifies a UBX message kind.
type MsgKey struct {
	Class, ID uint8
}

func (k MsgKey) String() string {
	if name, ok := msgNames[k]; ok {
		return name
	}
	return fmt.Sprintf("0x%02X-0x%02X", k.Class, k.ID)
}

var msgNames = map[MsgKey]string{
	{ubx.ClassNAV, ubx.NavPosLLH}:  "NAV-POSLLH",
	{ubx.ClassNAV, ubx.NavSol}:     "NAV-SOL",
	{ubx.ClassNAV, ubx.NavVelNED}:  "NAV-VELNED",
	{ubx.ClassNAV, ubx.NavTimeUTC}: "NAV-TIMEUTC",
	{ubx.ClassACK, ubx.AckAck}:     "ACK-ACK",
	{ubx.ClassACK, ubx.AckNak}:     "ACK-NAK",
}

// Summary describes a capture as decoded by the UBX pipeline.
type Summary struct {
	Chunks   int
	Bytes    int
	Duration time.Duration
	Messages map[MsgKey]int

	Fixes   int
	NoFixes int
	First   nav.Fix
	Last    nav.Fix
	MaxHMSL int32
	MinHMSL int32
}

// Summarize runs every chunk through the decoder and the aggregator.
func Summarize(records []Record) Summary {
	s := Summary{Messages: map[MsgKey]int{}}
	var dec ubx.Decoder
	agg := nav.Aggregator{
		OnFix: func(ep nav.Epoch) {
			if s.Fixes == 0 {
				s.First = ep.Fix
				s.MaxHMSL, s.MinHMSL = ep.Fix.HMSL, ep.Fix.HMSL
			}
			s.Fixes++
			s.Last = ep.Fix
			if ep.Fix.HMSL > s.MaxHMSL {
				s.MaxHMSL = ep.Fix.HMSL
			}
			if ep.Fix.HMSL < s.MinHMSL {
				s.MinHMSL = ep.Fix.HMSL
			}
		},
		OnNoFix: func() { s.NoFixes++ },
	}

	var origin time.Duration
	for _, r := range records {
		if r.Chunk == nil {
			origin = r.At
			continue
		}
		s.Chunks++
		s.Bytes += len(r.Chunk)
		if d := r.At - origin; d > s.Duration {
			s.Duration = d
		}
		dec.Feed(r.Chunk, func(m ubx.Message) {
			s.Messages[MsgKey{m.Class, m.ID}]++
			agg.HandleMessage(m)
			// Keep the ring drained; only the callbacks matter here.
			for {
				if _, ok := agg.Next(); !ok {
					break
				}
			}
		})
	}
	return s
}

// Print writes a human-readable report.
func (s Summary) Print(w io.Writer) {
	fmt.Fprintf(w, "chunks=%d bytes=%d duration=%s\n", s.Chunks, s.Bytes, s.Duration.Round(time.Millisecond))

	keys := make([]MsgKey, 0, len(s.Messages))
	for k := range s.Messages {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Class != keys[j].Class {
			return keys[i].Class < keys[j].Class
		}
		return keys[i].ID < keys[j].ID
	})
	for _, k := range keys {
		fmt.Fprintf(w, "  %-12s %d\n", k, s.Messages[k])
	}

	fmt.Fprintf(w, "fixes=%d no_fix_epochs=%d\n", s.Fixes, s.NoFixes)
	if s.Fixes > 0 {
		fmt.Fprintf(w, "first=%s last=%s\n", s.First.Time().Format(time.RFC3339), s.Last.Time().Format(time.RFC3339))
		fmt.Fprintf(w, "hmsl_m min=%.1f max=%.1f\n", float64(s.MinHMSL)/1000, float64(s.MaxHMSL)/1000)
	}
}
