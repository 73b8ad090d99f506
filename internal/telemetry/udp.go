package telemetry

import (
	"fmt"
	"net"
)

// udpClient sends each message as one datagram to a fixed destination.
// Topic, QoS and retain flags have no meaning on UDP and are ignored.
type udpClient struct {
	conn *net.UDPConn
}

func dialUDP(dest string) (*udpClient, error) {
	addr, err := net.ResolveUDPAddr("udp", dest)
	if err != nil {
		return nil, fmt.Errorf("resolve dest: %w", err)
	}

	// DialUDP selects a suitable local address automatically.
	conn, err := net.DialUDP("udp", nil, addr)
	if err != nil {
		return nil, fmt.Errorf("dial udp: %w", err)
	}
	return &udpClient{conn: conn}, nil
}

func (u *udpClient) Publish(_ string, _ byte, _ bool, payload []byte) error {
	if len(payload) == 0 {
		return nil
	}
	_, err := u.conn.Write(payload)
	return err
}

func (u *udpClient) Close() { _ = u.conn.Close() }

// DialUDP returns a publisher that sends every fix as a JSON datagram to
// dest (host:port). Broker and topic in cfg are ignored.
func DialUDP(dest string, cfg Config) (*Publisher, error) {
	c, err := dialUDP(dest)
	if err != nil {
		return nil, fmt.Errorf("udp %s: %w", dest, err)
	}
	return NewPublisher(c, cfg), nil
}
