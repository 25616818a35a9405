package apl

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/thruflo/camloop/internal/config"
	"github.com/thruflo/camloop/internal/imagefetch"
	"github.com/thruflo/camloop/internal/logging"
	"github.com/thruflo/camloop/internal/tick"
)

const tracerName = "github.com/thruflo/camloop/internal/apl"

// Builder composes step and termination batches.
type Builder struct {
	cfg      *config.Config
	resolver imagefetch.Resolver
	log      *logging.Logger
	tracer   trace.Tracer
}

// NewBuilder creates a Builder. cfg is read, never modified.
func NewBuilder(cfg *config.Config, resolver imagefetch.Resolver, logger *logging.Logger) *Builder {
	if logger == nil {
		logger = logging.Default()
	}
	return &Builder{
		cfg:      cfg,
		resolver: resolver,
		log:      logger,
		tracer:   otel.Tracer(tracerName),
	}
}

// Surfaces returns which image surface becomes visible and which one hides
// for step. Odd steps show SurfaceA, even steps show SurfaceB, so the next
// frame always loads into the surface that is currently hidden.
func Surfaces(step int) (show, hide string) {
	if step%2 != 0 {
		return SurfaceA, SurfaceB
	}
	return SurfaceB, SurfaceA
}

// BuildStep renders step p.Step for target p.TargetIndex and schedules the
// callback that asks for the following step. The scheduled callback carries
// p encoded as a tick. The only side effect is one snapshot fetch; when it
// fails the placeholder image is shown instead.
func (b *Builder) BuildStep(ctx context.Context, p tick.Payload) []Command {
	index := b.cfg.ClampIndex(p.TargetIndex)
	target := b.cfg.Target(index)
	timing := b.cfg.Timing

	ctx, span := b.tracer.Start(ctx, "apl.BuildStep", trace.WithAttributes(
		attribute.Int("camloop.step", p.Step),
		attribute.Int("camloop.target_index", index),
		attribute.Int("camloop.generation", p.Generation),
	))
	defer span.End()

	source, err := imagefetch.DataURLOrPlaceholder(ctx, b.resolver, target.Address, b.cfg.Credential, timing.FetchTimeout())
	if err != nil {
		b.log.Warn("snapshot unavailable, showing placeholder",
			"target", target.Label, "step", p.Step, "error", err)
		span.SetAttributes(attribute.Bool("camloop.placeholder", true))
	}

	show, hide := Surfaces(p.Step)

	cmds := []Command{
		NewSetValue(show, "source", source),
		NewSetValue(show, "opacity", 0),
		NewSetValue(hide, "opacity", 1),
	}
	if timing.AnimationDurationMs > 0 {
		cmds = append(cmds, NewFadeIn(show, timing.AnimationDurationMs))
	} else {
		cmds = append(cmds, NewSetValue(show, "opacity", 1))
	}
	cmds = append(cmds,
		NewSetValue(hide, "opacity", 0),
		NewSetValue(LabelSurface, "text", target.Label),
	)

	next := p
	next.Kind = tick.KindTick
	next.TargetIndex = index
	cmds = append(cmds,
		NewIdle(p.DelayMs),
		NewSendEvent(tick.Encode(next)),
	)
	return cmds
}

// BuildTermination returns the batch that closes the slideshow: navigate
// back, pause briefly, then acknowledge with quit_done.
func (b *Builder) BuildTermination() []Command {
	return []Command{
		NewBack(),
		NewIdle(b.cfg.Timing.ExitIdleMs),
		NewSendEvent(tick.QuitDone()),
	}
}
