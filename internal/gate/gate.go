package gate

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/spec-kit/auth-gateway/internal/config"
	"github.com/spec-kit/auth-gateway/internal/observability"
	"github.com/spec-kit/auth-gateway/internal/shield"
)

// Request is what the gate needs from an inbound request. Body must be a copy
// the caller no longer mutates.
type Request struct {
	Method   string
	Path     string
	Query    string
	Header   http.Header
	Body     []byte
	RemoteIP string
}

// Evaluation is the full outcome for one request.
type Evaluation struct {
	Route    RouteClass
	Tier     Tier
	Identity string
	Email    string
	// ParseErr is set when a sign-up body had no usable email.
	ParseErr error
	Decision shield.Decision
}

// Deps are the collaborators of a Gate. Sessions, Metrics and Stats are
// optional.
type Deps struct {
	Protector *shield.Protector
	Policies  Policies
	Sessions  SessionLookup
	Logger    *zap.Logger
	Metrics   *observability.Metrics
	Stats     shield.StatsStore
}

// Gate evaluates auth writes against the configured policies.
type Gate struct {
	protector  *shield.Protector
	policies   Policies
	sessions   SessionLookup
	logger     *zap.Logger
	metrics    *observability.Metrics
	stats      shield.StatsStore
	tracer     trace.Tracer
	trustProxy bool
	failOpen   bool
}

// New builds a Gate.
func New(cfg config.GateConfig, deps Deps) (*Gate, error) {
	if deps.Protector == nil {
		return nil, errors.New("gate: protector is required")
	}
	for _, t := range []Tier{TierActionStrict, TierSignUpLax, TierSignUpComposite} {
		if _, ok := deps.Policies.For(t); !ok {
			return nil, fmt.Errorf("gate: missing policy for tier %s", t)
		}
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gate{
		protector:  deps.Protector,
		policies:   deps.Policies,
		sessions:   deps.Sessions,
		logger:     logger,
		metrics:    deps.Metrics,
		stats:      deps.Stats,
		tracer:     otel.Tracer("github.com/spec-kit/auth-gateway/internal/gate"),
		trustProxy: cfg.TrustProxy,
		failOpen:   cfg.FailOpen,
	}, nil
}

// Evaluate classifies req, resolves its identity and runs the matching policy.
// An error means the policy could not be evaluated.
func (g *Gate) Evaluate(ctx context.Context, req Request) (Evaluation, error) {
	ctx, span := g.tracer.Start(ctx, "gate.Evaluate")
	defer span.End()

	ip := clientIP(req.Header, req.RemoteIP, g.trustProxy)
	ev := Evaluation{
		Route:    ClassifyRoute(req.Path),
		Identity: g.identity(ctx, req.Header, ip),
		Tier:     TierActionStrict,
	}
	if ev.Route == RouteSignUp {
		body, err := ParseSignUpBody(req.Body)
		switch {
		case err != nil:
			ev.ParseErr = err
			ev.Tier = TierSignUpLax
			g.logger.Debug("sign-up body without usable email", zap.Error(err))
		default:
			ev.Email = body.Email
			ev.Tier = TierSignUpComposite
		}
	}
	span.SetAttributes(
		attribute.String("gate.route", ev.Route.String()),
		attribute.String("gate.tier", string(ev.Tier)),
	)

	policy, _ := g.policies.For(ev.Tier)
	dec, err := g.protector.Protect(ctx, shield.Request{
		Identity:  ev.Identity,
		Email:     ev.Email,
		IP:        ip,
		Method:    req.Method,
		Path:      req.Path,
		Query:     req.Query,
		UserAgent: req.Header.Get("User-Agent"),
	}, policy)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "protect failed")
		g.metrics.RecordGateDecision(string(ev.Tier), "ERROR", "")
		return ev, fmt.Errorf("gate %s: %w", ev.Tier, err)
	}
	ev.Decision = dec

	g.record(ctx, req, ev)
	return ev, nil
}

// identity prefers the session user, then the client address, then the
// loopback fallback.
func (g *Gate) identity(ctx context.Context, header http.Header, ip string) string {
	if g.sessions != nil {
		userID, err := g.sessions.UserIDFromHeaders(ctx, header)
		if err != nil {
			g.logger.Warn("session lookup failed", zap.Error(err))
		} else if userID != "" {
			return userID
		}
	}
	if ip != "" {
		return ip
	}
	return FallbackIdentity
}

func (g *Gate) record(ctx context.Context, req Request, ev Evaluation) {
	conclusion := ev.Decision.Conclusion
	reason := ev.Decision.Reason.Kind
	g.metrics.RecordGateDecision(string(ev.Tier), string(conclusion), string(reason))

	if ev.Decision.IsDenied() {
		g.logger.Info("request denied",
			zap.String("tier", string(ev.Tier)),
			zap.String("reason", string(reason)),
			zap.String("identity", ev.Identity),
			zap.String("path", req.Path),
		)
	}

	if g.stats == nil {
		return
	}
	err := g.stats.Record(ctx, shield.StatsEvent{
		Identity:   ev.Identity,
		Policy:     string(ev.Tier),
		Conclusion: conclusion,
		Reason:     reason,
		Method:     req.Method,
		Path:       req.Path,
		At:         time.Now(),
	})
	if err != nil {
		g.logger.Debug("record gate stats", zap.Error(err))
	}
}
