package aisverify

/*------------------------------------------------------------------
 *
 * Purpose:   	Provide the event stream to other applications via a
 *		TCP socket.
 *
 * Description:	Each connected client gets every event from the time it
 *		connected, as one JSON object per line.  Anything the
 *		client sends is read and ignored.
 *
 *		A client which can't keep up loses events; one which
 *		stops reading altogether is disconnected after the write
 *		timeout.
 *
 *---------------------------------------------------------------*/

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
)

const eventWriteTimeout = 5 * time.Second

type EventServer struct {
	bus      *EventBus
	logger   *log.Logger
	listener net.Listener
	clients  atomic.Int32
	wg       sync.WaitGroup
}

func NewEventServer(address string, bus *EventBus, logger *log.Logger) (*EventServer, error) {
	var listener, listenErr = net.Listen("tcp", address)
	if listenErr != nil {
		return nil, fmt.Errorf("event server: listen %s: %w", address, listenErr)
	}

	return &EventServer{bus: bus, logger: logger, listener: listener}, nil //nolint:exhaustruct
}

func (s *EventServer) Addr() net.Addr {
	return s.listener.Addr()
}

// Port is the TCP port actually bound, for announcing.
func (s *EventServer) Port() int {
	if a, ok := s.listener.Addr().(*net.TCPAddr); ok {
		return a.Port
	}

	return 0
}

// Clients is the number of clients currently connected.
func (s *EventServer) Clients() int {
	return int(s.clients.Load())
}

// Serve accepts clients until ctx is cancelled, then waits for them to go.
func (s *EventServer) Serve(ctx context.Context) error {
	var stop = context.AfterFunc(ctx, func() {
		s.listener.Close()
	})
	defer stop()

	s.logger.Info("ready for event stream clients", "address", s.listener.Addr())

	for {
		var conn, acceptErr = s.listener.Accept()
		if acceptErr != nil {
			s.wg.Wait()

			if ctx.Err() != nil || errors.Is(acceptErr, net.ErrClosed) {
				return nil
			}

			return fmt.Errorf("event server: accept: %w", acceptErr)
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.serveClient(ctx, conn)
		}()
	}
}

func (s *EventServer) serveClient(ctx context.Context, conn net.Conn) {
	var events, unsubscribe = s.bus.Subscribe(sinkBuffer)
	defer unsubscribe()
	defer conn.Close()

	s.clients.Add(1)
	defer s.clients.Add(-1)

	var logger = s.logger.With("client", conn.RemoteAddr())
	logger.Info("event stream client connected")

	// Notice when the client goes away.
	var gone = make(chan struct{})
	go func() {
		io.Copy(io.Discard, conn) //nolint:errcheck
		close(gone)
	}()

	var enc = json.NewEncoder(conn)

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(eventWriteTimeout)) //nolint:errcheck
			if err := enc.Encode(ev); err != nil {
				logger.Info("event stream client dropped", "err", err)

				return
			}
		case <-gone:
			logger.Info("event stream client disconnected")

			return
		case <-ctx.Done():
			return
		}
	}
}
