// Package telemetry publishes fixes to an MQTT broker or as UDP datagrams
// for ground crews and bench tools. Publishing runs on its own goroutine; the foreground loop
// only enqueues.
package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"flysight-ng/internal/nav"
)

type Config struct {
	Broker   string // e.g. tcp://localhost:1883
	ClientID string
	Topic    string
	QoS      byte
	Retained bool

	// Target, when set, adds distance and bearing to every message.
	HasTarget bool
	TargetLat int32 // 1e-7 degrees
	TargetLon int32
}

// Client is the broker side of the publisher.
type Client interface {
	Publish(topic string, qos byte, retained bool, payload []byte) error
	Close()
}

// Message is the JSON document published per fix.
type Message struct {
	Time       time.Time `json:"time"`
	Fix        nav.Fix   `json:"fix"`
	DistanceM  *int32    `json:"distance_m,omitempty"`
	BearingDeg *int      `json:"bearing_deg,omitempty"`
	Direction  *int      `json:"direction_deg,omitempty"` // relative to heading
}

type Snapshot struct {
	Sent      uint64
	Dropped   uint64
	LastError string
}

const queueLen = 16

var dialFn = dialPaho

// Publisher drains a bounded queue of fixes into the client. Enqueue never
// blocks; a full queue drops the new fix.
type Publisher struct {
	cfg    Config
	client Client
	queue  chan nav.Fix

	sent    atomic.Uint64
	dropped atomic.Uint64
	lastErr atomic.Value // string

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
}

// Dial connects to cfg.Broker and returns a publisher for it.
func Dial(cfg Config) (*Publisher, error) {
	if strings.TrimSpace(cfg.Broker) == "" {
		return nil, fmt.Errorf("mqtt broker is required")
	}
	if cfg.Topic == "" {
		cfg.Topic = "flysight/fix"
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "flysight-ng"
	}
	c, err := dialFn(cfg)
	if err != nil {
		return nil, fmt.Errorf("mqtt connect %s: %w", cfg.Broker, err)
	}
	log.Printf("telemetry: connected to %s topic=%s", cfg.Broker, cfg.Topic)
	return NewPublisher(c, cfg), nil
}

func NewPublisher(c Client, cfg Config) *Publisher {
	p := &Publisher{cfg: cfg, client: c, queue: make(chan nav.Fix, queueLen)}
	p.lastErr.Store("")
	return p
}

func (p *Publisher) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return nil
	}
	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.started = true
	p.wg.Add(1)
	go p.run(ctx)
	return nil
}

// Enqueue hands f to the publishing goroutine.
func (p *Publisher) Enqueue(f nav.Fix) {
	select {
	case p.queue <- f:
	default:
		p.dropped.Add(1)
	}
}

func (p *Publisher) run(ctx context.Context) {
	defer p.wg.Done()
	failing := false
	for {
		select {
		case <-ctx.Done():
			return
		case f := <-p.queue:
			b, err := json.Marshal(p.message(f))
			if err == nil {
				err = p.client.Publish(p.cfg.Topic, p.cfg.QoS, p.cfg.Retained, b)
			}
			if err != nil {
				p.lastErr.Store(err.Error())
				if !failing {
					log.Printf("telemetry: publish failed: %v", err)
				}
				failing = true
				continue
			}
			if failing {
				log.Printf("telemetry: publish recovered")
			}
			failing = false
			p.sent.Add(1)
		}
	}
}

func (p *Publisher) message(f nav.Fix) Message {
	m := Message{Fix: f}
	if f.Year != 0 {
		m.Time = f.Time()
	}
	if p.cfg.HasTarget {
		d := nav.Distance(f.Lat, f.Lon, p.cfg.TargetLat, p.cfg.TargetLon)
		b := nav.Bearing(f.Lat, f.Lon, p.cfg.TargetLat, p.cfg.TargetLon)
		r := f.Direction(p.cfg.TargetLat, p.cfg.TargetLon)
		m.DistanceM, m.BearingDeg, m.Direction = &d, &b, &r
	}
	return m
}

func (p *Publisher) Snapshot() Snapshot {
	return Snapshot{
		Sent:      p.sent.Load(),
		Dropped:   p.dropped.Load(),
		LastError: p.lastErr.Load().(string),
	}
}

// Close stops the goroutine and disconnects. Queued fixes are discarded.
func (p *Publisher) Close() {
	p.mu.Lock()
	cancel := p.cancel
	p.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	p.wg.Wait()
	p.client.Close()
}

type pahoClient struct {
	c mqtt.Client
}

func dialPaho(cfg Config) (Client, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectTimeout(5 * time.Second)
	c := mqtt.NewClient(opts)
	tok := c.Connect()
	if !tok.WaitTimeout(5 * time.Second) {
		return nil, fmt.Errorf("timed out")
	}
	if err := tok.Error(); err != nil {
		return nil, err
	}
	return &pahoClient{c: c}, nil
}

func (p *pahoClient) Publish(topic string, qos byte, retained bool, payload []byte) error {
	tok := p.c.Publish(topic, qos, retained, payload)
	if !tok.WaitTimeout(2 * time.Second) {
		return fmt.Errorf("publish %s: timed out", topic)
	}
	return tok.Error()
}

func (p *pahoClient) Close() { p.c.Disconnect(250) }
