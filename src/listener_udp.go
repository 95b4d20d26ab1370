package aisverify

/*------------------------------------------------------------------
 *
 * Purpose:   	Receive sentences from UDP datagrams.
 *
 * Description:	Typical source is a receiver or SDR decoder (rtl-ais,
 *		AIS-catcher, ...) sending each sentence, or a few at a
 *		time, as a datagram.  SO_REUSEADDR and SO_REUSEPORT are set
 *		so another tool can listen on the same port.
 *
 *---------------------------------------------------------------*/

import (
	"context"
	"fmt"
	"net"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

const udpMaxDatagram = 65535

type UDPListener struct {
	address string

	mu   sync.Mutex
	conn net.PacketConn
}

func NewUDPListener(address string) *UDPListener {
	return &UDPListener{address: address} //nolint:exhaustruct
}

func (l *UDPListener) Name() string {
	return "udp:" + l.address
}

func reuseControl(_, _ string, c syscall.RawConn) error {
	var sockErr error

	var err = c.Control(func(fd uintptr) {
		sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1) //nolint:gosec // G115
		if sockErr == nil {
			sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEPORT, 1) //nolint:gosec // G115
		}
	})
	if err != nil {
		return err
	}

	return sockErr
}

// Listen binds the socket.  Run calls it if it hasn't been done already;
// calling it first lets the caller find out the actual port.
func (l *UDPListener) Listen(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.conn != nil {
		return nil
	}

	var lc = net.ListenConfig{Control: reuseControl} //nolint:exhaustruct

	var conn, err = lc.ListenPacket(ctx, "udp", l.address)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrTransport, l.Name(), err)
	}

	l.conn = conn

	return nil
}

// LocalAddr is nil until Listen succeeds.
func (l *UDPListener) LocalAddr() net.Addr {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.conn == nil {
		return nil
	}

	return l.conn.LocalAddr()
}

func (l *UDPListener) takeConn() net.PacketConn {
	l.mu.Lock()
	defer l.mu.Unlock()

	var conn = l.conn
	l.conn = nil

	return conn
}

func (l *UDPListener) Run(ctx context.Context, sink LineSink) error {
	if err := l.Listen(ctx); err != nil {
		return err
	}

	l.mu.Lock()
	var conn = l.conn
	l.mu.Unlock()

	// Socket is released when we return so a restart binds afresh.
	defer func() {
		if c := l.takeConn(); c != nil {
			c.Close()
		}
	}()

	var stop = context.AfterFunc(ctx, func() {
		conn.SetReadDeadline(time.Now()) //nolint:errcheck
	})
	defer stop()

	var buf = make([]byte, udpMaxDatagram)

	for {
		var n, _, readErr = conn.ReadFrom(buf)
		if readErr != nil {
			if ctx.Err() != nil {
				return nil
			}

			return fmt.Errorf("%w: %s: %w", ErrTransport, l.Name(), readErr)
		}

		var received = time.Now()
		for _, text := range ExtractSentences(string(buf[:n])) {
			if err := sink.Push(ctx, Line{Source: l.Name(), Text: text, Received: received}); err != nil {
				return nil //nolint:nilerr // Only fails on cancel.
			}
		}
	}
}
