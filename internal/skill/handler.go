package skill

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/thruflo/camloop/internal/config"
	"github.com/thruflo/camloop/internal/logging"
	"github.com/thruflo/camloop/internal/loop"
	"github.com/thruflo/camloop/internal/session"
)

const tracerName = "github.com/thruflo/camloop/internal/skill"

// ErrUnhandled is returned for requests no route accepts.
var ErrUnhandled = errors.New("unhandled request")

// Controller is the part of loop.Controller the handler drives.
type Controller interface {
	Start(ctx context.Context, st *session.State) loop.Result
	Reselect(ctx context.Context, st *session.State, targetIndex int) loop.Result
	HandleEvent(ctx context.Context, st *session.State, args []string) loop.Result
}

// Handler turns request envelopes into response envelopes.
type Handler struct {
	ctrl   Controller
	speech config.Speech
	log    *logging.Logger
	tracer trace.Tracer
}

// NewHandler creates a Handler. Only the speech settings of cfg are used.
func NewHandler(cfg *config.Config, ctrl Controller, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		ctrl:   ctrl,
		speech: cfg.Speech,
		log:    logger,
		tracer: otel.Tracer(tracerName),
	}
}

// Handle processes one request. It never fails: errors and panics inside a
// route are logged and answered with a response that ends the session.
func (h *Handler) Handle(ctx context.Context, req *RequestEnvelope) (resp *ResponseEnvelope) {
	ctx, span := h.tracer.Start(ctx, "skill.Handle", trace.WithAttributes(
		attribute.String("camloop.request_type", req.Request.Type),
		attribute.Bool("camloop.session_new", req.Session.New),
	))
	defer span.End()

	st := session.FromAttributes(req.Session.Attributes)
	log := h.log.WithFields(map[string]interface{}{
		"session": req.Session.SessionID,
		"request": req.Request.Type,
	})

	defer func() {
		if r := recover(); r != nil {
			log.Error("panic while handling request", "panic", fmt.Sprint(r), "stack", string(debug.Stack()))
			span.SetStatus(codes.Error, "panic")
			resp = envelope(st, endSession())
		}
	}()

	out, err := h.route(ctx, st, &req.Request)
	if err != nil {
		log.Error("request failed, ending session", "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		out = endSession()
	}
	return envelope(st, out)
}

func (h *Handler) route(ctx context.Context, st *session.State, req *Request) (Response, error) {
	switch req.Type {
	case RequestLaunch:
		return fromResult(h.ctrl.Start(ctx, st)), nil
	case RequestUserEvent:
		return fromResult(h.ctrl.HandleEvent(ctx, st, req.Arguments)), nil
	case RequestSessionEnded:
		return Response{}, nil
	case RequestIntent:
		return h.routeIntent(ctx, st, req.Intent)
	default:
		return Response{}, fmt.Errorf("%w: type %q", ErrUnhandled, req.Type)
	}
}

func (h *Handler) routeIntent(ctx context.Context, st *session.State, intent *Intent) (Response, error) {
	if intent == nil {
		return Response{}, fmt.Errorf("%w: intent request without intent", ErrUnhandled)
	}
	switch intent.Name {
	case IntentOpenCamera:
		n := ParseSlot(intent)
		if n < 1 {
			n = 1
		}
		return fromResult(h.ctrl.Reselect(ctx, st, n-1)), nil
	case IntentFallback:
		return Response{OutputSpeech: speak(h.speech.Fallback)}, nil
	case IntentCancel, IntentStop:
		return endSession(), nil
	default:
		return Response{}, fmt.Errorf("%w: intent %q", ErrUnhandled, intent.Name)
	}
}

func fromResult(r loop.Result) Response {
	if r.EndSession {
		return endSession()
	}
	return Response{Directives: r.Directives}
}

func envelope(st *session.State, r Response) *ResponseEnvelope {
	return &ResponseEnvelope{
		Version:           envelopeVersion,
		SessionAttributes: st.Attributes(),
		Response:          r,
	}
}
