package aisverify

/*------------------------------------------------------------------
 *
 * Purpose:   	Tie the listeners to the decoder, store and
 *		authentication.
 *
 * Description:	Listeners run concurrently and feed the line queue.
 *		A single consumer takes lines off the queue, in order,
 *		and does everything else:
 *
 *			parse -> dedupe -> assemble -> decode ->
 *				store, or authenticate if a signature.
 *
 *		Nothing which goes wrong with one line is allowed to
 *		affect the next.
 *
 *---------------------------------------------------------------*/

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
)

// TransportErrorHandler decides what happens after a listener fails.
// Return true to restart it after the restart delay.
type TransportErrorHandler func(name string, err error) bool

// PipelineStats is a snapshot of the consumer's counters.
type PipelineStats struct {
	Lines      int
	Duplicates int
	Assembled  int
	Stored     int
	Signatures int
	Verified   int
	Rejected   int
	Errors     int
}

type PipelineOptions struct {
	Listeners    []Listener
	Queue        *LineQueue
	Assembler    *FragmentAssembler
	Store        *MessageStore
	Auth         *AuthenticationCoordinator
	Dedupe       *Dedupe // nil to disable.
	Events       *EventBus
	Logger       *log.Logger
	Grace        time.Duration
	RestartDelay time.Duration
	OnTransport  TransportErrorHandler // nil means always restart.
}

type Pipeline struct {
	listeners    []Listener
	queue        *LineQueue
	assembler    *FragmentAssembler
	store        *MessageStore
	auth         *AuthenticationCoordinator
	dedupe       *Dedupe
	events       *EventBus
	logger       *log.Logger
	grace        time.Duration
	restartDelay time.Duration
	onTransport  TransportErrorHandler

	stats pipelineCounters
}

// Updated by the consumer, read by anyone.
type pipelineCounters struct {
	lines      atomic.Int64
	duplicates atomic.Int64
	assembled  atomic.Int64
	stored     atomic.Int64
	signatures atomic.Int64
	verified   atomic.Int64
	rejected   atomic.Int64
	errors     atomic.Int64
}

func NewPipeline(opts PipelineOptions) *Pipeline {
	var onTransport = opts.OnTransport
	if onTransport == nil {
		onTransport = func(string, error) bool { return true }
	}

	return &Pipeline{ //nolint:exhaustruct
		listeners:    opts.Listeners,
		queue:        opts.Queue,
		assembler:    opts.Assembler,
		store:        opts.Store,
		auth:         opts.Auth,
		dedupe:       opts.Dedupe,
		events:       opts.Events,
		logger:       opts.Logger,
		grace:        opts.Grace,
		restartDelay: opts.RestartDelay,
		onTransport:  onTransport,
	}
}

// Stats may be called while Run is in progress.
func (p *Pipeline) Stats() PipelineStats {
	return PipelineStats{
		Lines:      int(p.stats.lines.Load()),
		Duplicates: int(p.stats.duplicates.Load()),
		Assembled:  int(p.stats.assembled.Load()),
		Stored:     int(p.stats.stored.Load()),
		Signatures: int(p.stats.signatures.Load()),
		Verified:   int(p.stats.verified.Load()),
		Rejected:   int(p.stats.rejected.Load()),
		Errors:     int(p.stats.errors.Load()),
	}
}

/*-------------------------------------------------------------------
 *
 * Name:        Run
 *
 * Purpose:    	Start the listeners and consume until shut down.
 *
 * Description:	When ctx is cancelled the listeners stop, and once they
 *		have all returned the queue is closed.  Lines already
 *		queued are still processed, with a context that is not
 *		cancelled, for up to the grace period.
 *
 *--------------------------------------------------------------------*/

func (p *Pipeline) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	for _, l := range p.listeners {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.runListener(ctx, l)
		}()
	}

	go func() {
		wg.Wait()
		p.queue.Close()
	}()

	var work = context.WithoutCancel(ctx)
	var lines = p.queue.Lines()

	for {
		select {
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			p.Process(work, line)
		case <-ctx.Done():
			return p.drain(work, lines)
		}
	}
}

func (p *Pipeline) drain(ctx context.Context, lines <-chan Line) error {
	var timer = time.NewTimer(p.grace)
	defer timer.Stop()

	for {
		select {
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			p.Process(ctx, line)
		case <-timer.C:
			p.logger.Warn("shutdown grace period expired", "queued", p.queue.Len())

			return nil
		}
	}
}

func (p *Pipeline) runListener(ctx context.Context, l Listener) {
	var logger = p.logger.With("listener", l.Name())
	logger.Info("listening")

	for {
		var err = l.Run(ctx, p.queue)
		if err == nil || ctx.Err() != nil {
			logger.Debug("listener stopped")

			return
		}

		logger.Error("listener failed", "err", err)
		p.events.Publish(Event{Kind: EventError, Slot: -1, Source: l.Name(), Error: err.Error()}) //nolint:exhaustruct

		if !p.onTransport(l.Name(), err) || p.restartDelay <= 0 {
			return
		}

		select {
		case <-time.After(p.restartDelay):
			logger.Info("restarting listener")
		case <-ctx.Done():
			return
		}
	}
}

/*-------------------------------------------------------------------
 *
 * Name:        Process
 *
 * Purpose:    	Handle one received line.
 *
 * Description:	Must only be called from one goroutine at a time.
 *
 *--------------------------------------------------------------------*/

func (p *Pipeline) Process(ctx context.Context, line Line) {
	p.stats.lines.Add(1)

	var s, err = ParseSentence(line.Text)
	if err != nil {
		p.fail(line, err)

		return
	}

	if p.dedupe != nil && p.dedupe.Seen(s.Raw, line.Received) {
		p.stats.duplicates.Add(1)
		p.logger.Debug("duplicate sentence dropped", "source", line.Source, "line", s.Raw)

		return
	}

	var a *Assembly
	a, err = p.assembler.Add(s)
	if err != nil {
		p.fail(line, err)

		return
	}
	if a == nil {
		return // Waiting for more fragments.
	}
	p.stats.assembled.Add(1)

	var bits Bits
	bits, err = ArmorToBits(a.Payload, a.FillBits)
	if err != nil {
		p.fail(line, err)

		return
	}

	var msg Message
	msg, err = Decode(bits, a.IsVDE())
	if err != nil {
		p.fail(line, err)

		return
	}

	p.logger.Debug("decoded", "source", line.Source, "type", msg.MessageType(), "mmsi", msg.SourceMMSI())
	p.events.Publish(Event{ //nolint:exhaustruct
		Kind:   EventDecoded,
		Slot:   -1,
		Source: line.Source,
		Row:    NewRow(msg, false),
	})

	if IsSignatureEnvelope(msg) {
		p.authenticate(ctx, msg.(*BinaryMessage)) //nolint:forcetypeassert

		return
	}

	p.keep(line, a, bits, msg)
}

func (p *Pipeline) authenticate(ctx context.Context, sig *BinaryMessage) {
	p.stats.signatures.Add(1)

	var res = p.auth.Authenticate(ctx, sig)
	switch {
	case res.Verified:
		p.stats.verified.Add(1)
	case res.Target != nil:
		p.stats.rejected.Add(1)
	}
}

func (p *Pipeline) keep(line Line, a *Assembly, bits Bits, msg Message) {
	if !p.store.Trusted(msg.MessageType()) {
		return
	}

	var second, ok = SecondOfMinute(msg)
	var rec = &MessageRecord{ //nolint:exhaustruct
		Message:   msg,
		Bits:      bits,
		Timestamp: ReconstructTimestamp(line.Received, second, ok),
		Raw:       a.Raw,
		Received:  line.Received,
	}

	var stored, reset = p.store.Insert(rec)
	if !stored {
		return
	}
	p.stats.stored.Add(1)

	if reset {
		p.logger.Info("message store full, starting over")
		p.events.Publish(Event{Kind: EventReset, Slot: -1}) //nolint:exhaustruct
	}

	p.events.Publish(Event{ //nolint:exhaustruct
		Kind:   EventStored,
		Slot:   rec.Slot,
		Source: line.Source,
		Row:    NewRow(msg, false),
	})
}

func (p *Pipeline) fail(line Line, err error) {
	p.stats.errors.Add(1)

	if errors.Is(err, ErrFragment) {
		p.logger.Debug("fragment dropped", "source", line.Source, "err", err)
	} else {
		p.logger.Warn("line dropped", "source", line.Source, "err", err)
	}

	p.events.Publish(Event{Kind: EventError, Slot: -1, Source: line.Source, Error: err.Error()}) //nolint:exhaustruct
}
