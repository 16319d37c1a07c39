package shield

import (
	"context"
	"net/url"
	"strings"
)

// Lowercased substrings that mark common injection and traversal probes.
var attackSignatures = []string{
	"../",
	"..\\",
	"/etc/passwd",
	"<script",
	"javascript:",
	"onerror=",
	"union select",
	"' or '1'='1",
	"\" or \"1\"=\"1",
	"; drop table",
	"${jndi:",
	"\x00",
}

// AttackRule inspects the path and query for known attack signatures.
type AttackRule struct {
	mode Mode
}

// NewAttackRule builds the signature rule applied to every policy.
func NewAttackRule(mode Mode) *AttackRule {
	return &AttackRule{mode: mode}
}

func (r *AttackRule) Name() string { return "shield" }
func (r *AttackRule) Mode() Mode   { return r.mode }

func (r *AttackRule) Evaluate(_ context.Context, req Request) (RuleResult, error) {
	target := req.Path
	if req.Query != "" {
		target += "?" + req.Query
	}
	if sig, ok := matchAttack(target); ok {
		return RuleResult{
			Conclusion: ConclusionDeny,
			Reason:     Reason{Kind: ReasonShield, Shield: &ShieldReason{Signature: sig}},
		}, nil
	}
	return RuleResult{Conclusion: ConclusionAllow}, nil
}

func matchAttack(raw string) (string, bool) {
	candidates := []string{strings.ToLower(raw)}
	// Probes are usually percent-encoded, sometimes twice.
	decoded := raw
	for i := 0; i < 2; i++ {
		next, err := url.QueryUnescape(decoded)
		if err != nil || next == decoded {
			break
		}
		decoded = next
		candidates = append(candidates, strings.ToLower(decoded))
	}
	for _, c := range candidates {
		for _, sig := range attackSignatures {
			if strings.Contains(c, sig) {
				return sig, true
			}
		}
	}
	return "", false
}
