package aisverify

import (
	"bytes"
	"context"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// freeUDPAddress finds a port nobody is using, probably.
func freeUDPAddress(t *testing.T) string {
	t.Helper()

	var pc, err = net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	defer pc.Close()

	return pc.LocalAddr().String()
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.String()
}

func TestApp_EndToEnd(t *testing.T) {
	var stub, srv = newVerifyStub(t, http.StatusOK)
	var fwdConn, _ = forwardTarget(t)
	var listen = freeUDPAddress(t)
	var csvPath = filepath.Join(t.TempDir(), "events.csv")

	var cfg = DefaultConfig()
	cfg.Listeners = []ListenerConfig{{Type: "udp", Address: listen}} //nolint:exhaustruct
	cfg.Verifier.Host = strings.TrimPrefix(srv.URL, "http://")
	cfg.Forward = fwdConn.LocalAddr().String()
	cfg.Events.CSVLog = csvPath
	cfg.Events.Listen = "127.0.0.1:0"

	var console lockedBuffer
	var app, err = NewApp(cfg, &console, DiscardLogger())
	require.NoError(t, err)
	t.Cleanup(app.Close)
	assert.Equal(t, "1 listeners, store 20 epoch, correlation latest", app.String())

	var events, unsubscribe = app.Events().Subscribe(256)
	defer unsubscribe()

	var ctx, cancel = context.WithCancel(context.Background())
	var done = make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	var sender net.Conn
	sender, err = net.Dial("udp", listen)
	require.NoError(t, err)
	defer sender.Close()

	var aton = atonSentences(t, 992351000, "NAB TOWER", "1")
	var stored = func() bool {
		for {
			select {
			case ev := <-events:
				if ev.Kind == EventStored {
					return true
				}
			default:
				return false
			}
		}
	}

	// The listener may not be bound yet, so keep sending until it is.
	require.Eventually(t, func() bool {
		for _, line := range aton {
			sender.Write([]byte(line + "\r\n")) //nolint:errcheck
		}

		return stored()
	}, 5*time.Second, 50*time.Millisecond)

	for _, line := range MustEncode(t, BuildSignature(8, 2579999, TestSignature(), false), TagAIVDM, "2") {
		_, err = sender.Write([]byte(line + "\r\n"))
		require.NoError(t, err)
	}

	var got []byte
	got, err = readDatagram(fwdConn, 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, strings.Join(aton, "\r\n"), string(got))
	assert.GreaterOrEqual(t, stub.Calls(), 1)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		require.FailNow(t, "app did not stop")
	}

	assert.Contains(t, console.String(), "VERIFIED")

	var data []byte
	data, err = os.ReadFile(csvPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), ",verified,")
}

func TestApp_RunReturnsWhenListenersGiveUp(t *testing.T) {
	var cfg = DefaultConfig()
	cfg.Listeners = []ListenerConfig{{Type: "udp", Address: "256.0.0.1:1"}} //nolint:exhaustruct
	cfg.ListenerRestart = 0
	cfg.Events.Listen = "127.0.0.1:0"

	var app, err = NewApp(cfg, nil, DiscardLogger())
	require.NoError(t, err)
	t.Cleanup(app.Close)

	var done = make(chan error, 1)
	go func() { done <- app.Run(context.Background()) }()

	select {
	case err := <-done:
		require.ErrorIs(t, err, ErrTransport)
	case <-time.After(5 * time.Second):
		require.FailNow(t, "Run kept going with no listeners left")
	}

	// The event server has let go of its port.
	var conn, dialErr = net.Dial("tcp", app.server.Addr().String())
	if dialErr == nil {
		conn.Close()
	}
	assert.Error(t, dialErr)
}

func TestNewApp_InvalidConfig(t *testing.T) {
	var cfg = DefaultConfig()
	cfg.Store.Capacity = 0

	var _, err = NewApp(cfg, nil, DiscardLogger())
	assert.ErrorIs(t, err, ErrConfig)
}

func TestNewApp_BadCSVLocation(t *testing.T) {
	var file = filepath.Join(t.TempDir(), "plain")
	require.NoError(t, os.WriteFile(file, nil, 0o600))

	var cfg = DefaultConfig()
	cfg.Events.CSVLog = file
	cfg.Events.CSVDaily = true

	var _, err = NewApp(cfg, nil, DiscardLogger())
	assert.ErrorIs(t, err, ErrConfig)
}
