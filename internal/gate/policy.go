package gate

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/spec-kit/auth-gateway/internal/config"
	"github.com/spec-kit/auth-gateway/internal/shield"
)

// Tier names the policy applied to a request.
type Tier string

const (
	TierActionStrict    Tier = "action_strict"
	TierSignUpLax       Tier = "sign_up_lax"
	TierSignUpComposite Tier = "sign_up_composite"
)

// Bucket names. The composite and action tiers share the strict bucket, so a
// caller cannot double its budget by alternating endpoints.
const (
	bucketStrict = "strict"
	bucketLax    = "lax"
)

// Policies holds one prebuilt policy per tier.
type Policies struct {
	byTier map[Tier]shield.Policy
}

// NewPolicies builds every tier from cfg. Rule order is shield, email, bot,
// rate limit, so denied requests do not spend rate-limit budget.
func NewPolicies(cfg config.GateConfig, store shield.WindowStore, validator *shield.EmailValidator) (Policies, error) {
	mode := shield.ParseMode(cfg.Mode)

	strict, err := shield.NewSlidingWindow(bucketStrict, mode, cfg.StrictMax, cfg.StrictWindow, store)
	if err != nil {
		return Policies{}, fmt.Errorf("strict tier: %w", err)
	}
	lax, err := shield.NewSlidingWindow(bucketLax, mode, cfg.LaxMax, cfg.LaxWindow, store)
	if err != nil {
		return Policies{}, fmt.Errorf("lax tier: %w", err)
	}

	block := make([]shield.EmailType, 0, len(cfg.EmailBlock))
	for _, t := range cfg.EmailBlock {
		block = append(block, shield.EmailType(t))
	}

	attack := shield.NewAttackRule(mode)
	bot := shield.NewBotRule(mode, cfg.BotAllow)
	email := shield.NewEmailRule(mode, block, validator)

	return Policies{byTier: map[Tier]shield.Policy{
		TierActionStrict:    {Name: string(TierActionStrict), Rules: []shield.Rule{attack, bot, strict}},
		TierSignUpLax:       {Name: string(TierSignUpLax), Rules: []shield.Rule{attack, bot, lax}},
		TierSignUpComposite: {Name: string(TierSignUpComposite), Rules: []shield.Rule{attack, email, bot, strict}},
	}}, nil
}

// For returns the policy of a tier.
func (p Policies) For(t Tier) (shield.Policy, bool) {
	policy, ok := p.byTier[t]
	return policy, ok
}

// StoreNamespace returns the counter key prefix for cfg. Deployments with
// different API keys never share counters on the same Redis.
func StoreNamespace(cfg config.GateConfig) string {
	if cfg.APIKey == "" {
		return cfg.KeyPrefix
	}
	sum := sha256.Sum256([]byte(cfg.APIKey))
	return cfg.KeyPrefix + ":" + hex.EncodeToString(sum[:4])
}
