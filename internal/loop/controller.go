package loop

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/thruflo/camloop/internal/apl"
	"github.com/thruflo/camloop/internal/config"
	"github.com/thruflo/camloop/internal/logging"
	"github.com/thruflo/camloop/internal/session"
	"github.com/thruflo/camloop/internal/tick"
)

const tracerName = "github.com/thruflo/camloop/internal/loop"

// Outcome describes what a controller call did.
type Outcome int

const (
	OutcomeIgnored    Outcome = iota // Unknown or empty callback, nothing sent
	OutcomeStarted                   // New loop on the default target
	OutcomeReselected                // New loop on a chosen target
	OutcomeStep                      // Next step of the running loop
	OutcomeStale                     // Callback from a superseded loop, dropped
	OutcomeExpired                   // Deadline reached, termination sent
	OutcomeQuit                      // Client acknowledged termination
)

// String returns a human-readable description of the outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomeIgnored:
		return "ignored"
	case OutcomeStarted:
		return "started"
	case OutcomeReselected:
		return "reselected"
	case OutcomeStep:
		return "step"
	case OutcomeStale:
		return "stale"
	case OutcomeExpired:
		return "expired"
	case OutcomeQuit:
		return "quit"
	default:
		return "unknown"
	}
}

// Result is the response to one inbound message.
type Result struct {
	Outcome    Outcome
	Directives []apl.Directive
	EndSession bool
}

// Options holds configuration for creating a Controller.
type Options struct {
	Config   *config.Config
	Builder  *apl.Builder
	Document *apl.Document
	Logger   *logging.Logger
	Now      func() time.Time // Optional: for deterministic time-based testing
}

// Controller runs the loop state machine: Idle -> Looping -> Idle.
type Controller struct {
	cfg      *config.Config
	builder  *apl.Builder
	document *apl.Document
	log      *logging.Logger
	now      func() time.Time
	tracer   trace.Tracer
}

// New creates a Controller.
func New(opts Options) (*Controller, error) {
	if opts.Config == nil {
		return nil, errors.New("config is required")
	}
	if opts.Builder == nil {
		return nil, errors.New("builder is required")
	}
	if opts.Document == nil {
		return nil, errors.New("document is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Controller{
		cfg:      opts.Config,
		builder:  opts.Builder,
		document: opts.Document,
		log:      logger,
		now:      now,
		tracer:   otel.Tracer(tracerName),
	}, nil
}

// Start begins a loop on the first target at generation 1.
func (c *Controller) Start(ctx context.Context, st *session.State) Result {
	ctx, span := c.tracer.Start(ctx, "loop.Start")
	defer span.End()

	st.Reset(1)
	gen := st.Current()
	span.SetAttributes(attribute.Int("camloop.generation", gen))

	c.log.Info("loop started", "generation", gen, "target", 0)
	return Result{
		Outcome:    OutcomeStarted,
		Directives: c.firstStep(ctx, 0, gen),
	}
}

// Reselect supersedes the running loop with a new one on targetIndex. The
// generation bump makes every callback still scheduled by the old loop
// stale.
func (c *Controller) Reselect(ctx context.Context, st *session.State, targetIndex int) Result {
	ctx, span := c.tracer.Start(ctx, "loop.Reselect")
	defer span.End()

	gen := st.Bump()
	index := c.cfg.ClampIndex(targetIndex)
	span.SetAttributes(
		attribute.Int("camloop.generation", gen),
		attribute.Int("camloop.target_index", index),
	)

	c.log.Info("loop reselected", "generation", gen, "target", index)
	return Result{
		Outcome:    OutcomeReselected,
		Directives: c.firstStep(ctx, index, gen),
	}
}

func (c *Controller) firstStep(ctx context.Context, index, gen int) []apl.Directive {
	p := tick.Payload{
		Kind:        tick.KindTick,
		StartMs:     c.now().UnixMilli(),
		DelayMs:     c.cfg.Timing.StepDelayMs,
		Step:        1,
		TargetIndex: index,
		Generation:  gen,
	}
	token := c.cfg.Document.Token
	return []apl.Directive{
		apl.NewRenderDocument(token, c.document),
		apl.NewExecuteCommands(token, c.builder.BuildStep(ctx, p)),
	}
}

// Tick advances the loop by one step from the state carried in args.
//
// The next step is stamped with the generation held in st rather than the
// one carried by the callback. The two only differ when the callback is
// stale, and stale callbacks are dropped before that point.
func (c *Controller) Tick(ctx context.Context, st *session.State, args []string) Result {
	ctx, span := c.tracer.Start(ctx, "loop.Tick")
	defer span.End()

	now := c.now()
	p, err := tick.Decode(args, now, c.cfg.Timing.StepDelayMs)
	if err != nil {
		c.log.Warn("malformed tick, restarting from defaults", "error", err)
	}

	current := st.Current()
	span.SetAttributes(
		attribute.Int("camloop.generation", current),
		attribute.Int("camloop.event_generation", p.Generation),
		attribute.Int("camloop.step", p.Step),
	)

	if p.Generation != current {
		c.log.Debug("dropping stale tick", "event_generation", p.Generation, "generation", current)
		return Result{Outcome: OutcomeStale}
	}

	index := c.cfg.ClampIndex(p.TargetIndex)
	token := c.cfg.Document.Token

	if IsExpired(p.StartMs, now.UnixMilli(), int64(c.cfg.Timing.TotalDurationMs)) {
		c.log.Info("loop deadline reached", "generation", current, "steps", p.Step)
		return Result{
			Outcome:    OutcomeExpired,
			Directives: []apl.Directive{apl.NewExecuteCommands(token, c.builder.BuildTermination())},
		}
	}

	next := p
	next.Kind = tick.KindTick
	next.Step = p.Step + 1
	next.TargetIndex = index
	next.Generation = current
	if next.DelayMs <= 0 {
		next.DelayMs = c.cfg.Timing.StepDelayMs
	}

	return Result{
		Outcome:    OutcomeStep,
		Directives: []apl.Directive{apl.NewExecuteCommands(token, c.builder.BuildStep(ctx, next))},
	}
}

// QuitDone ends the conversation after the client has navigated back.
func (c *Controller) QuitDone(ctx context.Context, st *session.State) Result {
	_, span := c.tracer.Start(ctx, "loop.QuitDone")
	defer span.End()

	c.log.Info("loop finished", "generation", st.Current())
	return Result{Outcome: OutcomeQuit, EndSession: true}
}

// HandleEvent routes a client callback by its kind. Empty arguments and
// unknown kinds are ignored.
func (c *Controller) HandleEvent(ctx context.Context, st *session.State, args []string) Result {
	switch tick.KindOf(args) {
	case tick.KindQuitDone:
		return c.QuitDone(ctx, st)
	case tick.KindTick:
		return c.Tick(ctx, st, args)
	case "":
		return Result{Outcome: OutcomeIgnored}
	default:
		c.log.Debug("ignoring unknown callback", "kind", args[0])
		return Result{Outcome: OutcomeIgnored}
	}
}
