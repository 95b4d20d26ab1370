package aisverify

/*------------------------------------------------------------------
 *
 * Purpose:	Save events to a log file.
 *
 * Description: Write separated properties into CSV format for easy
 *		reading and later processing.
 *
 *		There are two alternatives here.
 *
 *		csv_log: file		Specify full file path.
 *
 *		csv_log: dir
 *		csv_daily: true		Daily names will be created here.
 *
 *------------------------------------------------------------------*/

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/lestrrat-go/strftime"
)

// Daily file names, from the UTC date.
const csvDailyPattern = "%Y-%m-%d.log"

var csvHeader = []string{
	"utime", "isotime", "event", "slot", "source", "type", "mmsi", "dest_mmsi",
	"name", "aid_type", "latitude", "longitude", "mgrs", "verified", "error",
}

type CSVLog struct {
	daily  bool
	path   string // Directory when daily, otherwise the file.
	naming *strftime.Strftime
	logger *log.Logger

	fp        *os.File
	w         *csv.Writer
	openFname string
}

/*------------------------------------------------------------------
 *
 * Function:	NewCSVLog
 *
 * Inputs:	daily	- True if daily names should be generated.
 *			  In this case path is a directory.
 *			  When false, path would be the file name.
 *
 *		path	- Log file name or just directory.
 *
 *------------------------------------------------------------------*/

func NewCSVLog(daily bool, path string, logger *log.Logger) (*CSVLog, error) {
	var pattern, patternErr = strftime.New(csvDailyPattern)
	if patternErr != nil {
		return nil, patternErr
	}

	var l = &CSVLog{daily: daily, path: path, naming: pattern, logger: logger} //nolint:exhaustruct

	if !daily {
		logger.Info("log file", "path", path)

		return l, nil
	}

	var stat, statErr = os.Stat(path)
	if statErr == nil {
		if !stat.IsDir() {
			return nil, fmt.Errorf("%w: log file location %q is not a directory", ErrConfig, path)
		}

		return l, nil
	}

	// Parent directory must exist.
	// We don't create multiple levels like "mkdir -p"
	if mkdirErr := os.Mkdir(path, 0o755); mkdirErr != nil { //nolint:gosec
		return nil, fmt.Errorf("%w: failed to create log file location %q: %w", ErrConfig, path, mkdirErr)
	}
	logger.Info("log file location has been created", "path", path)

	return l, nil
}

// FileName is where an event at time now is written.
func (l *CSVLog) FileName(now time.Time) string {
	if !l.daily {
		return l.path
	}

	return filepath.Join(l.path, l.naming.FormatString(now.UTC()))
}

func (l *CSVLog) open(fname string) error {
	// See if file already exists and not empty.
	// This is used later to write a header if it did not exist already.
	var stat, statErr = os.Stat(fname)
	var alreadyThere = statErr == nil && stat.Size() > 0

	l.logger.Info("opening log file", "path", fname)

	var f, openErr = os.OpenFile(fname, os.O_RDWR|os.O_APPEND|os.O_CREATE, 0o644) //nolint:gosec
	if openErr != nil {
		return fmt.Errorf("can't open log file %q for write: %w", fname, openErr)
	}

	l.fp = f
	l.w = csv.NewWriter(f)
	l.openFname = fname

	if !alreadyThere {
		l.w.Write(csvHeader) //nolint:errcheck // Surfaces at Flush.
	}

	return nil
}

/*------------------------------------------------------------------
 *
 * Function:	Write
 *
 * Purpose:	Save one event to the log file.  The file is kept open,
 *		and switched to a new one when the daily name changes.
 *
 *------------------------------------------------------------------*/

func (l *CSVLog) Write(ev Event) error {
	var fname = l.FileName(ev.Time)

	if l.fp != nil && fname != l.openFname {
		l.Close()
	}

	if l.fp == nil {
		if err := l.open(fname); err != nil {
			return err
		}
	}

	var record = []string{
		strconv.FormatInt(ev.Time.Unix(), 10),
		ev.Time.UTC().Format("2006-01-02T15:04:05Z"),
		string(ev.Kind),
		"",
		ev.Source,
		"", "", "", "", "", "", "", "", "",
		ev.Error,
	}

	if ev.Slot >= 0 {
		record[3] = strconv.Itoa(ev.Slot)
	}

	if r := ev.Row; r != nil {
		record[5] = strconv.Itoa(r.Type)
		record[6] = strconv.FormatUint(uint64(r.MMSI), 10)
		if r.DestMMSI != 0 {
			record[7] = strconv.FormatUint(uint64(r.DestMMSI), 10)
		}
		record[8] = r.Name
		record[9] = r.AidType
		if r.Lat != nil && r.Lon != nil {
			record[10] = fmt.Sprintf("%.6f", *r.Lat)
			record[11] = fmt.Sprintf("%.6f", *r.Lon)
		}
		record[12] = r.MGRS
		record[13] = strconv.FormatBool(r.Verified)
	}

	l.w.Write(record) //nolint:errcheck // Surfaces at Flush.
	l.w.Flush()

	return l.w.Error()
}

func (l *CSVLog) Close() {
	if l.fp == nil {
		return
	}

	l.w.Flush()
	l.fp.Close()
	l.fp = nil
	l.w = nil
	l.openFname = ""
}

func (l *CSVLog) Name() string {
	return "csv"
}

func (l *CSVLog) Consume(ctx context.Context, events <-chan Event) error {
	defer l.Close()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if err := l.Write(ev); err != nil {
				l.logger.Error("log file write failed", "err", err)
			}
		case <-ctx.Done():
			return nil
		}
	}
}
