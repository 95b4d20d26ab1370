package aisverify

/*------------------------------------------------------------------
 *
 * Purpose:   	Receive sentences from a serial port.
 *
 * Description:	Many AIS receivers present a USB serial device which
 *		emits NMEA lines, usually at 38400 baud.
 *
 *---------------------------------------------------------------*/

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/pkg/term"
)

const serialPoll = 200 * time.Millisecond

type SerialListener struct {
	device string
	baud   int
}

func NewSerialListener(device string, baud int) *SerialListener {
	return &SerialListener{device: device, baud: baud}
}

func (l *SerialListener) Name() string {
	return "serial:" + l.device
}

/*-------------------------------------------------------------------
 *
 * Name:	openSerialPort
 *
 * Inputs:	device	- Usually like /dev/ttyUSB0.
 *
 *		baud	- Speed.  4800, 38400 bps, etc.
 *			  If 0, leave it alone.
 *
 *---------------------------------------------------------------*/

func openSerialPort(device string, baud int) (*term.Term, error) {
	switch baud {
	case 0, 1200, 2400, 4800, 9600, 19200, 38400, 57600, 115200:
	default:
		return nil, fmt.Errorf("%w: unsupported serial speed %d", ErrConfig, baud)
	}

	var t, err = term.Open(device, term.RawMode)
	if err != nil {
		return nil, fmt.Errorf("%w: could not open serial port %s: %w", ErrTransport, device, err)
	}

	if baud != 0 {
		if speedErr := t.SetSpeed(baud); speedErr != nil {
			t.Close()

			return nil, fmt.Errorf("%w: %s: set speed %d: %w", ErrTransport, device, baud, speedErr)
		}
	}

	return t, nil
}

func (l *SerialListener) Run(ctx context.Context, sink LineSink) error {
	var t, err = openSerialPort(l.device, l.baud)
	if err != nil {
		return err
	}
	defer t.Close()

	// Closing the port doesn't reliably wake a blocked read, so poll.
	if timeoutErr := t.SetReadTimeout(serialPoll); timeoutErr != nil {
		return fmt.Errorf("%w: %s: %w", ErrTransport, l.Name(), timeoutErr)
	}

	var buf = make([]byte, 1024)
	var pending []byte

	for {
		if ctx.Err() != nil {
			return nil
		}

		var n, readErr = t.Read(buf)
		if n > 0 {
			pending = append(pending, buf[:n]...)

			var last = bytes.LastIndexByte(pending, '\n')
			if last >= 0 {
				var received = time.Now()
				for _, text := range ExtractSentences(string(pending[:last])) {
					if err := sink.Push(ctx, Line{Source: l.Name(), Text: text, Received: received}); err != nil {
						return nil //nolint:nilerr // Only fails on cancel.
					}
				}
				pending = append(pending[:0], pending[last+1:]...)
			}

			if len(pending) > NMEA_MAX_LEN*4 {
				// No line ending in sight, not NMEA.
				pending = pending[:0]
			}
		}

		// A poll timeout reads nothing, and may say EOF.
		if readErr != nil && !errors.Is(readErr, io.EOF) {
			if ctx.Err() != nil {
				return nil
			}

			return fmt.Errorf("%w: %s: %w", ErrTransport, l.Name(), readErr)
		}
	}
}
