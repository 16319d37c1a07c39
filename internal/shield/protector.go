package shield

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Rule is one check in a policy.
type Rule interface {
	Name() string
	Mode() Mode
	Evaluate(ctx context.Context, req Request) (RuleResult, error)
}

// Policy is an ordered set of rules evaluated together.
type Policy struct {
	Name  string
	Rules []Rule
}

// Protector evaluates policies.
type Protector struct {
	logger *zap.Logger
	tracer trace.Tracer
}

// NewProtector builds a Protector. A nil logger disables logging.
func NewProtector(logger *zap.Logger) *Protector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Protector{
		logger: logger,
		tracer: otel.Tracer("github.com/spec-kit/auth-gateway/internal/shield"),
	}
}

// Protect runs the policy's rules in order. The first LIVE deny ends the
// evaluation and becomes the decision; DRY_RUN denies are logged and skipped.
// A rule error aborts the evaluation and is returned as is.
func (p *Protector) Protect(ctx context.Context, req Request, policy Policy) (Decision, error) {
	ctx, span := p.tracer.Start(ctx, "shield.Protect", trace.WithAttributes(
		attribute.String("shield.policy", policy.Name),
		attribute.Int("shield.rules", len(policy.Rules)),
	))
	defer span.End()

	dec := Decision{Conclusion: ConclusionAllow}
	for _, rule := range policy.Rules {
		res, err := rule.Evaluate(ctx, req)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "rule failed")
			return Decision{}, fmt.Errorf("shield rule %s: %w", rule.Name(), err)
		}
		res.Rule = rule.Name()
		res.Mode = rule.Mode()
		dec.Results = append(dec.Results, res)

		if res.Conclusion != ConclusionDeny {
			continue
		}
		if res.Mode == ModeDryRun {
			p.logger.Warn("dry run deny",
				zap.String("policy", policy.Name),
				zap.String("rule", res.Rule),
				zap.String("reason", string(res.Reason.Kind)),
				zap.String("identity", req.Identity),
			)
			continue
		}
		dec.Conclusion = ConclusionDeny
		dec.Reason = res.Reason
		break
	}

	span.SetAttributes(
		attribute.String("shield.conclusion", string(dec.Conclusion)),
		attribute.String("shield.reason", string(dec.Reason.Kind)),
	)
	return dec, nil
}
