package aisverify

import (
	"fmt"
	"net"
)

// Forwarder re-emits the original sentence of a verified message.
type Forwarder interface {
	Forward(raw []byte) error
}

// UDPForwarder sends each forwarded message as one datagram.
type UDPForwarder struct {
	conn *net.UDPConn
}

// NewUDPForwarder connects to "host:port".
func NewUDPForwarder(dest string) (*UDPForwarder, error) {
	var addr, resolveErr = net.ResolveUDPAddr("udp", dest)
	if resolveErr != nil {
		return nil, fmt.Errorf("%w: forward address %q: %w", ErrConfig, dest, resolveErr)
	}

	var conn, dialErr = net.DialUDP("udp", nil, addr)
	if dialErr != nil {
		return nil, fmt.Errorf("%w: forward to %s: %w", ErrTransport, addr, dialErr)
	}

	return &UDPForwarder{conn: conn}, nil
}

func (f *UDPForwarder) Forward(raw []byte) error {
	var _, err = f.conn.Write(raw)
	if err != nil {
		return fmt.Errorf("%w: forward: %w", ErrTransport, err)
	}

	return nil
}

func (f *UDPForwarder) String() string {
	return f.conn.RemoteAddr().String()
}

func (f *UDPForwarder) Close() error {
	return f.conn.Close()
}
