package aisverify

/*------------------------------------------------------------------
 *
 * Purpose:   	Show what is happening, one line per event, for someone
 *		watching the terminal.
 *
 *---------------------------------------------------------------*/

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/lestrrat-go/strftime"
)

const DefaultTimestampFormat = "%H:%M:%S"

type ConsoleSink struct {
	w      io.Writer
	format *strftime.Strftime
}

func NewConsoleSink(w io.Writer, timestampFormat string) (*ConsoleSink, error) {
	if timestampFormat == "" {
		timestampFormat = DefaultTimestampFormat
	}

	var f, err = strftime.New(timestampFormat)
	if err != nil {
		return nil, fmt.Errorf("%w: timestamp format %q: %w", ErrConfig, timestampFormat, err)
	}

	return &ConsoleSink{w: w, format: f}, nil
}

func (c *ConsoleSink) Name() string {
	return "console"
}

// FormatEvent renders one event as a single line, without newline.
func (c *ConsoleSink) FormatEvent(ev Event) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "%s %-8s", c.format.FormatString(ev.Time), ev.Kind)

	if ev.Slot >= 0 {
		fmt.Fprintf(&sb, " slot %2d", ev.Slot)
	}

	if r := ev.Row; r != nil {
		fmt.Fprintf(&sb, " type %2d mmsi %09d", r.Type, r.MMSI)
		if r.DestMMSI != 0 {
			fmt.Fprintf(&sb, " dest %09d", r.DestMMSI)
		}
		if r.Name != "" {
			fmt.Fprintf(&sb, " %q", r.Name)
		}
		if r.AidType != "" {
			fmt.Fprintf(&sb, " %s", r.AidType)
		}
		if r.Lat != nil && r.Lon != nil {
			fmt.Fprintf(&sb, " %.6f %.6f", *r.Lat, *r.Lon)
		}
		if r.MGRS != "" {
			fmt.Fprintf(&sb, " %s", r.MGRS)
		}
		if r.Verified {
			sb.WriteString(" VERIFIED")
		}
	}

	if ev.Error != "" {
		fmt.Fprintf(&sb, " %s", ev.Error)
	}

	return strings.TrimRight(sb.String(), " ")
}

func (c *ConsoleSink) Consume(ctx context.Context, events <-chan Event) error {
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if _, err := fmt.Fprintln(c.w, c.FormatEvent(ev)); err != nil {
				return err
			}
		case <-ctx.Done():
			return nil
		}
	}
}
