package main

/*------------------------------------------------------------------
 *
 * Purpose:   	Main program for the AIS message validator:
 *
 *			Receive AIVDM/VEEDM sentences over UDP or serial.
 *			Reassemble and decode them.
 *			Keep recent trusted messages (Aids to Navigation by default).
 *			Check detached signatures with a verification service.
 *			Forward messages which verify.
 *
 *---------------------------------------------------------------*/

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	aisverify "github.com/doismellburning/aisverify/src"
	"github.com/spf13/pflag"
	"golang.org/x/sys/unix"
)

func main() {
	var configFileName = pflag.StringP("config-file", "c", "", "Configuration file name.  Default is to look for aisverify.yaml.")
	var udpAddrs = pflag.StringSliceP("udp", "u", nil, "Listen for sentences on UDP host:port.  May be repeated.  Replaces configured listeners.")
	var serialDevice = pflag.StringP("serial", "s", "", "Read sentences from serial device.  Replaces configured listeners.")
	var baud = pflag.IntP("baud", "B", 0, "Serial port speed.  0 to leave it alone.")
	var verifierHost = pflag.StringP("verifier", "v", "", "Verification service host:port.")
	var verifierScheme = pflag.String("verifier-scheme", "", "http or https.")
	var forward = pflag.StringP("forward", "f", "", "Send verified messages to UDP host:port.")
	var capacity = pflag.IntP("store-size", "n", 0, "Number of recent messages kept for authentication.")
	var eviction = pflag.String("eviction", "", "What happens when the store is full: epoch or ring.")
	var correlation = pflag.String("correlation", "", "Which stored message a signature applies to: latest or mmsi.")
	var trusted = pflag.IntSlice("trusted-types", nil, "Message types kept for authentication.")
	var dedupe = pflag.Duration("dedupe", 0, "Drop identical sentences seen within this time.  0 to disable.")
	var timestampFormat = pflag.StringP("timestamp-format", "T", "", "'strftime' format for console time stamps.")
	var logDir = pflag.StringP("log-dir", "l", "", "Directory name for daily CSV event logs.")
	var logFile = pflag.StringP("log-file", "L", "", "File name for CSV event log.")
	var eventsListen = pflag.StringP("events", "e", "", "Serve the JSON event stream on TCP host:port.")
	var dnsSD = pflag.Bool("dns-sd", false, "Announce the event stream with DNS-SD.")
	var mqttBroker = pflag.StringP("mqtt", "m", "", "Publish events to this MQTT broker.")
	var logLevel = pflag.StringP("log-level", "d", "", "debug, info, warn or error.")
	var logJSON = pflag.Bool("log-json", false, "Log as JSON.")
	var quiet = pflag.BoolP("quiet", "q", false, "Don't print events on the console.")
	var showVersion = pflag.Bool("version", false, "Print version and exit.")

	var help = pflag.BoolP("help", "h", false, "Display help text.")

	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "%s - AIS message authentication validator.\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\n")
		fmt.Fprintf(os.Stderr, "Usage: aisverify [options]\n")
		pflag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\n")
		fmt.Fprintf(os.Stderr, "Options override the configuration file.\n")
	}

	pflag.Parse()

	if *help {
		pflag.Usage()
		os.Exit(1)
	}

	if *showVersion {
		aisverify.PrintVersion(os.Stdout, false)
		os.Exit(0)
	}

	if pflag.NArg() > 0 {
		fmt.Fprintf(os.Stderr, "Unexpected argument %q\n", pflag.Arg(0))
		pflag.Usage()
		os.Exit(1)
	}

	var cfg, cfgErr = aisverify.LoadConfig(*configFileName)
	if cfgErr != nil {
		fmt.Fprintf(os.Stderr, "%s\n", cfgErr)
		os.Exit(1)
	}

	// Command line wins over config file.

	if len(*udpAddrs) > 0 || *serialDevice != "" {
		cfg.Listeners = nil
		for _, a := range *udpAddrs {
			cfg.Listeners = append(cfg.Listeners, aisverify.ListenerConfig{Type: "udp", Address: a}) //nolint:exhaustruct
		}
		if *serialDevice != "" {
			cfg.Listeners = append(cfg.Listeners, aisverify.ListenerConfig{Type: "serial", Device: *serialDevice, Baud: *baud}) //nolint:exhaustruct
		}
	}

	if *verifierHost != "" {
		cfg.Verifier.Host = *verifierHost
	}
	if *verifierScheme != "" {
		cfg.Verifier.Scheme = *verifierScheme
	}
	if *forward != "" {
		cfg.Forward = *forward
	}
	if *capacity != 0 {
		cfg.Store.Capacity = *capacity
	}
	if *eviction != "" {
		cfg.Store.Eviction = *eviction
	}
	if *correlation != "" {
		cfg.Correlation = *correlation
	}
	if len(*trusted) > 0 {
		cfg.Store.TrustedTypes = *trusted
	}
	if *dedupe != 0 {
		cfg.DedupeWindow = *dedupe
	}
	if *timestampFormat != "" {
		cfg.Events.TimestampFormat = *timestampFormat
	}

	if *logDir != "" && *logFile != "" {
		fmt.Fprintf(os.Stderr, "Use -l for a daily log directory or -L for a single file, not both.\n")
		os.Exit(1)
	}
	if *logDir != "" {
		cfg.Events.CSVLog = *logDir
		cfg.Events.CSVDaily = true
	}
	if *logFile != "" {
		cfg.Events.CSVLog = *logFile
		cfg.Events.CSVDaily = false
	}

	if *eventsListen != "" {
		cfg.Events.Listen = *eventsListen
	}
	if *dnsSD {
		cfg.Events.DNSSD = true
	}
	if *mqttBroker != "" {
		cfg.Events.MQTT.Broker = *mqttBroker
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	if *logJSON {
		cfg.LogJSON = true
	}
	if *quiet {
		cfg.Events.Console = false
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}

	var level, _ = aisverify.ParseLevel(cfg.LogLevel)
	var logger = aisverify.NewLogger(os.Stderr, level, cfg.LogJSON)

	logger.Info(aisverify.VersionString())

	var app, appErr = aisverify.NewApp(cfg, os.Stdout, logger)
	if appErr != nil {
		logger.Error("startup failed", "err", appErr)
		os.Exit(1)
	}
	defer app.Close()

	logger.Info("starting", "setup", app.String())

	var ctx, stop = signal.NotifyContext(context.Background(), os.Interrupt, unix.SIGTERM)
	defer stop()

	if err := app.Run(ctx); err != nil {
		logger.Error("exiting", "err", err)
		app.Close()
		os.Exit(1) //nolint:gocritic
	}

	logger.Info("done")
}
