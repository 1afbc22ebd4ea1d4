// Package gateway orchestrates one assistant request end to end: build,
// dispatch, relay, normalize, track.
package gateway

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/coreerp/assistant-gateway/internal/assistant"
	"github.com/coreerp/assistant-gateway/internal/builder"
	"github.com/coreerp/assistant-gateway/internal/domain"
	"github.com/coreerp/assistant-gateway/internal/normalizer"
	"github.com/coreerp/assistant-gateway/internal/transport"
)

// State is the lifecycle stage of one request. One request is handled
// entirely on its caller's goroutine; states exist for logging and tests,
// not for coordination.
type State string

const (
	StateReceived      State = "RECEIVED"
	StateValidated     State = "VALIDATED"
	StateBuilt         State = "BUILT"
	StateDispatched    State = "DISPATCHED"
	StateSyncCompleted State = "SYNC_COMPLETED"
	StateStreaming     State = "STREAMING"
	StateRelaying      State = "RELAYING"
	StateTerminated    State = "TERMINATED"
	StateFailed        State = "FAILED"
)

// TransportClient is the outbound side of the gateway. *transport.Client is
// the production implementation; tests substitute spies.
type TransportClient interface {
	Ask(ctx context.Context, payload *builder.Payload) ([]byte, error)
	OpenStream(ctx context.Context, payload *builder.Payload) (io.ReadCloser, error)
}

// Gateway wires the request pipeline together.
type Gateway struct {
	registry   assistant.Registry
	builder    *builder.Builder
	transport  TransportClient
	relay      *transport.Relay
	normalizer *normalizer.Normalizer
	logger     *slog.Logger
}

// New creates a gateway.
func New(registry assistant.Registry, b *builder.Builder, tc TransportClient, relay *transport.Relay, n *normalizer.Normalizer, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{
		registry:   registry,
		builder:    b,
		transport:  tc,
		relay:      relay,
		normalizer: n,
		logger:     logger,
	}
}

// Ask handles a buffered request: one POST, one JSON document, one
// envelope.
func (g *Gateway) Ask(ctx context.Context, rc *domain.RequestContext, req *domain.QuestionRequest) (*domain.AnswerEnvelope, error) {
	payload, err := g.prepare(ctx, rc, req)
	if err != nil {
		return nil, err
	}

	g.transition(req, StateDispatched)
	doc, err := g.transport.Ask(ctx, payload)
	if err != nil {
		g.transition(req, StateFailed)
		g.normalizer.TrackFailure(ctx, req.AppID, payload.ConversationID, payload.Question)
		return nil, err
	}

	envelope, err := g.normalizer.Normalize(ctx, req.AppID, payload.ConversationID, payload.Question, doc)
	if err != nil {
		g.transition(req, StateFailed)
		return nil, err
	}
	g.transition(req, StateSyncCompleted)
	return envelope, nil
}

// Stream handles a streaming request: the backend's SSE frames are relayed
// to dst as they arrive (first frame is always the empty acknowledgment),
// and the terminal frame is normalized once the stream ends. The caller's
// goroutine drives the relay loop for the stream's entire lifetime.
func (g *Gateway) Stream(ctx context.Context, rc *domain.RequestContext, req *domain.QuestionRequest, dst io.Writer) (*domain.AnswerEnvelope, error) {
	payload, err := g.prepare(ctx, rc, req)
	if err != nil {
		return nil, err
	}

	g.transition(req, StateDispatched)
	body, err := g.transport.OpenStream(ctx, payload)
	if err != nil {
		g.transition(req, StateFailed)
		var httpErr *transport.HTTPError
		if errors.As(err, &httpErr) {
			// The backend refused the request with a document; it may still
			// normalize into a structured error.
			return nil, g.normalizeRefusal(ctx, req, payload, httpErr)
		}
		g.normalizer.TrackFailure(ctx, req.AppID, payload.ConversationID, payload.Question)
		return nil, err
	}

	g.transition(req, StateStreaming)
	g.transition(req, StateRelaying)
	result, err := g.relay.Run(dst, body, true)
	if err != nil {
		g.transition(req, StateFailed)
		g.normalizer.TrackFailure(ctx, req.AppID, payload.ConversationID, payload.Question)
		return nil, domain.ErrBackendUnavailable(err)
	}
	if result.Disconnected {
		g.logger.Info("caller disconnected before stream end",
			slog.String("app_id", req.AppID),
			slog.Int("forwarded", result.Forwarded),
		)
		if result.Terminal == nil {
			// The caller left before the backend produced a terminal frame.
			// There is no answer to normalize and nothing has failed.
			g.transition(req, StateTerminated)
			return nil, nil
		}
	}

	envelope, err := g.normalizer.Normalize(ctx, req.AppID, payload.ConversationID, payload.Question, result.Terminal)
	if err != nil {
		g.transition(req, StateFailed)
		return nil, err
	}
	g.transition(req, StateTerminated)
	return envelope, nil
}

// prepare resolves the assistant and builds the payload. All failures here
// happen before any network access.
func (g *Gateway) prepare(ctx context.Context, rc *domain.RequestContext, req *domain.QuestionRequest) (*builder.Payload, error) {
	g.transition(req, StateReceived)
	if req.AppID == "" {
		g.transition(req, StateFailed)
		return nil, domain.ErrValidation("app_id is required")
	}

	app, err := g.registry.Get(ctx, req.AppID)
	if err != nil {
		g.transition(req, StateFailed)
		return nil, err
	}
	g.transition(req, StateValidated)

	payload, err := g.builder.Build(ctx, rc, app, req)
	if err != nil {
		g.transition(req, StateFailed)
		return nil, err
	}
	g.transition(req, StateBuilt)
	return payload, nil
}

func (g *Gateway) normalizeRefusal(ctx context.Context, req *domain.QuestionRequest, payload *builder.Payload, httpErr *transport.HTTPError) error {
	_, err := g.normalizer.Normalize(ctx, req.AppID, payload.ConversationID, payload.Question, httpErr.Body)
	if err != nil {
		return err
	}
	// A refusal that normalizes into a success makes no sense; treat it as
	// a malformed reply.
	return domain.ErrMalformedResponse().WithCause(httpErr)
}

func (g *Gateway) transition(req *domain.QuestionRequest, state State) {
	g.logger.Debug("request state",
		slog.String("app_id", req.AppID),
		slog.String("state", string(state)),
	)
}
