package aisverify

/*------------------------------------------------------------------
 *
 * Purpose:   	Build everything from a configuration and run it.
 *
 * Description:	The front end loads the configuration, applies its
 *		command line options and hands the result to NewApp.
 *		Run blocks until ctx is cancelled and the pipeline has
 *		drained.
 *
 *---------------------------------------------------------------*/

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/log"
)

type App struct {
	cfg      *Config
	logger   *log.Logger
	events   *EventBus
	pipeline *Pipeline
	store    *MessageStore

	sinks     []EventSink
	server    *EventServer
	forwarder *UDPForwarder
}

// NewApp opens the forwarding socket, event server and sinks, but starts
// nothing.
func NewApp(cfg *Config, console io.Writer, logger *log.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// Already validated, errors are impossible.
	var eviction, _ = ParseEvictionPolicy(cfg.Store.Eviction)
	var correlation, _ = ParseCorrelationPolicy(cfg.Correlation)
	var overload, _ = ParseOverloadPolicy(cfg.Queue.Overload)

	var app = &App{cfg: cfg, logger: logger, events: NewEventBus()} //nolint:exhaustruct

	var listeners []Listener
	for _, lc := range cfg.Listeners {
		switch lc.Type {
		case "udp":
			listeners = append(listeners, NewUDPListener(lc.Address))
		case "serial":
			listeners = append(listeners, NewSerialListener(lc.Device, lc.Baud))
		}
	}

	var assembler = NewFragmentAssembler(cfg.Fragments.TTL)

	app.store = NewMessageStore(cfg.Store.Capacity, eviction, cfg.Store.TrustedTypes, func() {
		// Fragments collected before the reset belong to the old epoch.
		assembler.Reset()
	})

	var forwarder Forwarder
	if cfg.Forward != "" {
		var f, err = NewUDPForwarder(cfg.Forward)
		if err != nil {
			return nil, err
		}
		app.forwarder = f
		forwarder = f
		logger.Info("forwarding verified messages", "to", cfg.Forward)
	}

	var verifier = NewHTTPVerifier(cfg.Verifier.Scheme, cfg.Verifier.Host, cfg.Verifier.Path, cfg.Verifier.Timeout, logger)
	var auth = NewAuthenticationCoordinator(app.store, verifier, forwarder, correlation, app.events, logger)

	app.pipeline = NewPipeline(PipelineOptions{
		Listeners:    listeners,
		Queue:        NewLineQueue(cfg.Queue.Size, overload),
		Assembler:    assembler,
		Store:        app.store,
		Auth:         auth,
		Dedupe:       NewDedupe(cfg.DedupeWindow),
		Events:       app.events,
		Logger:       logger,
		Grace:        cfg.ShutdownGrace,
		RestartDelay: cfg.ListenerRestart,
		OnTransport:  nil,
	})

	if err := app.openSinks(console); err != nil {
		app.Close()

		return nil, err
	}

	return app, nil
}

func (app *App) openSinks(console io.Writer) error {
	var ec = app.cfg.Events

	if ec.Console && console != nil {
		var c, err = NewConsoleSink(console, ec.TimestampFormat)
		if err != nil {
			return err
		}
		app.sinks = append(app.sinks, c)
	}

	if ec.CSVLog != "" {
		var l, err = NewCSVLog(ec.CSVDaily, ec.CSVLog, app.logger)
		if err != nil {
			return err
		}
		app.sinks = append(app.sinks, l)
	}

	if ec.MQTT.Broker != "" {
		var m, err = NewMQTTSink(ec.MQTT.Broker, ec.MQTT.Topic, ec.MQTT.ClientID, app.logger)
		if err != nil {
			return err
		}
		app.sinks = append(app.sinks, m)
	}

	if ec.Listen != "" {
		var s, err = NewEventServer(ec.Listen, app.events, app.logger)
		if err != nil {
			return err
		}
		app.server = s
	}

	return nil
}

func (app *App) Events() *EventBus {
	return app.events
}

func (app *App) Store() *MessageStore {
	return app.store
}

/*-------------------------------------------------------------------
 *
 * Name:        Run
 *
 * Purpose:    	Start the sinks, event server and pipeline.
 *
 * Description:	Returns once the pipeline has finished and the sinks
 *		have seen every event it published.  That is normally
 *		after ctx is cancelled.  If every listener gives up first
 *		the result wraps ErrTransport and the caller decides what
 *		to do next.
 *
 *--------------------------------------------------------------------*/

func (app *App) Run(ctx context.Context) error {
	var sinkCtx, stopSinks = context.WithCancel(context.WithoutCancel(ctx))
	defer stopSinks()

	var wg sync.WaitGroup
	for _, sink := range app.sinks {
		var events, unsubscribe = app.events.Subscribe(sinkBuffer)
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer unsubscribe()
			if err := sink.Consume(sinkCtx, events); err != nil {
				app.logger.Error("event sink stopped", "sink", sink.Name(), "err", err)
			}
		}()
	}

	// The server and announcement also stop when the pipeline gives up
	// by itself, with every listener failed.
	var srvCtx, stopServer = context.WithCancel(ctx)
	defer stopServer()

	var serverErr = make(chan error, 1)
	if app.server != nil {
		go func() {
			serverErr <- app.server.Serve(srvCtx)
		}()

		if app.cfg.Events.DNSSD {
			if err := AnnounceEventService(srvCtx, app.cfg.Events.DNSSDName, app.server.Port(), app.logger); err != nil {
				app.logger.Error("DNS-SD announce failed", "err", err)
			}
		}
	} else {
		serverErr <- nil
	}

	var runErr = app.pipeline.Run(ctx)
	if runErr == nil && ctx.Err() == nil {
		runErr = fmt.Errorf("%w: every listener has stopped", ErrTransport)
	}
	stopServer()

	var st = app.pipeline.Stats()
	app.logger.Info("stopped",
		"lines", st.Lines, "stored", st.Stored, "signatures", st.Signatures,
		"verified", st.Verified, "rejected", st.Rejected, "errors", st.Errors,
		"duplicates", st.Duplicates, "events_dropped", app.events.Dropped())

	// Closing the bus ends each sink once it has written what it has.
	app.events.Close()
	wg.Wait()

	return errors.Join(runErr, <-serverErr)
}

func (app *App) Close() {
	if app.forwarder != nil {
		if err := app.forwarder.Close(); err != nil {
			app.logger.Warn("closing forwarder", "err", err)
		}
	}
}

func (app *App) String() string {
	return fmt.Sprintf("%d listeners, store %d %s, correlation %s",
		len(app.cfg.Listeners), app.cfg.Store.Capacity, app.cfg.Store.Eviction, app.cfg.Correlation)
}
