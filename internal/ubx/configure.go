package ubx

import (
	"context"
	"fmt"
	"io"
	"log"
)

// Port is the serial link to the receiver. Read must return periodically
// (a read timeout of ~100 ms) so acknowledgement waits can observe their
// deadline.
type Port interface {
	io.ReadWriter
	SetBaud(baud int) error
	Drain() error
}

// Countdown is a millisecond deadline advanced by a periodic timer.
type Countdown interface {
	Start(ms uint32)
	Expired() bool
}

// Options controls the configuration handshake.
type Options struct {
	InitBaud     int    // receiver power-on baud rate
	Baud         int    // operating baud rate
	RateMS       uint16 // measurement period
	Model        uint8  // dynamic platform model
	AckTimeoutMS uint32

	// Observe, when set, receives every chunk read while waiting for an
	// acknowledgement.
	Observe func([]byte)
}

func (o Options) withDefaults() Options {
	if o.InitBaud == 0 {
		o.InitBaud = 9600
	}
	if o.Baud == 0 {
		o.Baud = 38400
	}
	if o.RateMS == 0 {
		o.RateMS = 200
	}
	if o.AckTimeoutMS == 0 {
		o.AckTimeoutMS = 500
	}
	return o
}

// Configurator runs the start-of-day receiver handshake. It blocks until the
// receiver acknowledged every command or ctx is cancelled.
type Configurator struct {
	port  Port
	clock Countdown
	opt   Options
	dec   Decoder
	buf   [256]byte
}

func NewConfigurator(port Port, clock Countdown, opt Options) *Configurator {
	return &Configurator{port: port, clock: clock, opt: opt.withDefaults()}
}

var outputRates = []CfgMsgPayload{
	{ClassNMEA, NmeaGGA, 0},
	{ClassNMEA, NmeaGLL, 0},
	{ClassNMEA, NmeaGSA, 0},
	{ClassNMEA, NmeaGSV, 0},
	{ClassNMEA, NmeaRMC, 0},
	{ClassNMEA, NmeaVTG, 0},
	{ClassNAV, NavPosLLH, 1},
	{ClassNAV, NavVelNED, 1},
	{ClassNAV, NavSol, 1},
	{ClassNAV, NavTimeUTC, 1},
}

func (c *Configurator) Configure(ctx context.Context) error {
	if c.port == nil || c.clock == nil {
		return fmt.Errorf("ubx: configurator not initialized")
	}

	for attempt := 1; ; attempt++ {
		ok, err := c.configurePort(ctx)
		if err != nil {
			return err
		}
		if ok {
			break
		}
		log.Printf("ubx: cfg-prt not acknowledged (attempt %d), retrying", attempt)
	}

	for _, m := range outputRates {
		if err := c.sendAcked(ctx, ClassCFG, CfgMsg, m); err != nil {
			return err
		}
	}

	rate := CfgRatePayload{MeasRate: c.opt.RateMS, NavRate: 1, TimeRef: 0}
	if err := c.sendAcked(ctx, ClassCFG, CfgRate, rate); err != nil {
		return err
	}

	nav5 := CfgNav5Payload{Mask: 0x0001, DynModel: c.opt.Model}
	if err := c.sendAcked(ctx, ClassCFG, CfgNav5, nav5); err != nil {
		return err
	}

	// Controlled GNSS-only software reset; the receiver does not ack it.
	rst, err := Marshal(ClassCFG, CfgRst, CfgRstPayload{NavBbrMask: 0, ResetMode: 0x09})
	if err != nil {
		return err
	}
	if _, err := c.port.Write(rst); err != nil {
		return fmt.Errorf("ubx: write cfg-rst: %w", err)
	}
	log.Printf("ubx: receiver configured baud=%d rate_ms=%d model=%d", c.opt.Baud, c.opt.RateMS, c.opt.Model)
	return nil
}

// configurePort sends CFG-PRT at the power-on baud rate without waiting,
// switches the local port to the operating rate and repeats the command,
// this time awaiting the acknowledgement.
func (c *Configurator) configurePort(ctx context.Context) (bool, error) {
	prt, err := Marshal(ClassCFG, CfgPrt, CfgPrtPayload{
		PortID:       1,
		Mode:         0x000008D0,
		BaudRate:     uint32(c.opt.Baud),
		InProtoMask:  0x0001,
		OutProtoMask: 0x0001,
	})
	if err != nil {
		return false, err
	}

	if err := c.port.SetBaud(c.opt.InitBaud); err != nil {
		return false, fmt.Errorf("ubx: set baud %d: %w", c.opt.InitBaud, err)
	}
	if _, err := c.port.Write(prt); err != nil {
		return false, fmt.Errorf("ubx: write cfg-prt: %w", err)
	}
	if err := c.port.Drain(); err != nil {
		return false, fmt.Errorf("ubx: drain: %w", err)
	}
	if err := c.port.SetBaud(c.opt.Baud); err != nil {
		return false, fmt.Errorf("ubx: set baud %d: %w", c.opt.Baud, err)
	}
	if _, err := c.port.Write(prt); err != nil {
		return false, fmt.Errorf("ubx: write cfg-prt: %w", err)
	}
	c.dec.Reset()
	return c.WaitForAck(ctx, ClassCFG, CfgPrt)
}

func (c *Configurator) sendAcked(ctx context.Context, class, id byte, payload any) error {
	frame, err := Marshal(class, id, payload)
	if err != nil {
		return err
	}
	for {
		if _, err := c.port.Write(frame); err != nil {
			return fmt.Errorf("ubx: write %02x-%02x: %w", class, id, err)
		}
		ok, err := c.WaitForAck(ctx, class, id)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
	}
}

// WaitForAck reads until an ACK-ACK or ACK-NAK for class/id arrives or the
// acknowledgement timeout elapses. It reports true only for ACK-ACK.
func (c *Configurator) WaitForAck(ctx context.Context, class, id byte) (bool, error) {
	c.clock.Start(c.opt.AckTimeoutMS)
	for !c.clock.Expired() {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		n, err := c.port.Read(c.buf[:])
		if err != nil {
			return false, fmt.Errorf("ubx: read: %w", err)
		}
		if n == 0 {
			continue
		}
		if c.opt.Observe != nil {
			c.opt.Observe(c.buf[:n])
		}
		for _, b := range c.buf[:n] {
			m, ok := c.dec.HandleByte(b)
			if !ok || m.Class != ClassACK {
				continue
			}
			ack, err := ParseAck(m.Payload)
			if err != nil || ack.Class != class || ack.ID != id {
				continue
			}
			return m.ID == AckAck, nil
		}
	}
	return false, nil
}
