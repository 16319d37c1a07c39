package shield

import (
	"slices"
	"time"
)

// Mode selects whether a rule enforces its result.
type Mode string

const (
	ModeLive   Mode = "LIVE"
	ModeDryRun Mode = "DRY_RUN"
)

// ParseMode maps a configuration value to a Mode. Anything other than LIVE is
// treated as DRY_RUN.
func ParseMode(v string) Mode {
	if Mode(v) == ModeLive {
		return ModeLive
	}
	return ModeDryRun
}

// Conclusion is the outcome of a rule or a whole policy.
type Conclusion string

const (
	ConclusionAllow Conclusion = "ALLOW"
	ConclusionDeny  Conclusion = "DENY"
)

// ReasonKind discriminates why a request was denied.
type ReasonKind string

const (
	ReasonNone      ReasonKind = ""
	ReasonRateLimit ReasonKind = "RATE_LIMIT"
	ReasonBot       ReasonKind = "BOT"
	ReasonEmail     ReasonKind = "EMAIL"
	ReasonShield    ReasonKind = "SHIELD"
)

// EmailType is a category flagged by email screening.
type EmailType string

const (
	EmailInvalid    EmailType = "INVALID"
	EmailNoMX       EmailType = "NO_MX_RECORDS"
	EmailDisposable EmailType = "DISPOSABLE"
	EmailFree       EmailType = "FREE"
)

// RateLimitReason describes the bucket that ran out.
type RateLimitReason struct {
	Max       int64
	Window    time.Duration
	Remaining int64
	ResetIn   time.Duration
}

// BotReason names the detected client.
type BotReason struct {
	Name     string
	Category string
}

// ShieldReason names the matched attack signature.
type ShieldReason struct {
	Signature string
}

// Reason explains a rule result. Only the field matching Kind is set.
type Reason struct {
	Kind       ReasonKind
	EmailTypes []EmailType
	RateLimit  *RateLimitReason
	Bot        *BotReason
	Shield     *ShieldReason
}

func (r Reason) IsRateLimit() bool { return r.Kind == ReasonRateLimit }
func (r Reason) IsEmail() bool     { return r.Kind == ReasonEmail }
func (r Reason) IsBot() bool       { return r.Kind == ReasonBot }
func (r Reason) IsShield() bool    { return r.Kind == ReasonShield }

// HasEmailType reports whether t was flagged.
func (r Reason) HasEmailType(t EmailType) bool {
	return slices.Contains(r.EmailTypes, t)
}

// RuleResult is what one rule concluded.
type RuleResult struct {
	Rule       string
	Mode       Mode
	Conclusion Conclusion
	Reason     Reason
}

// Decision is the outcome of a policy.
type Decision struct {
	Conclusion Conclusion
	Reason     Reason
	Results    []RuleResult
}

func (d Decision) IsDenied() bool  { return d.Conclusion == ConclusionDeny }
func (d Decision) IsAllowed() bool { return d.Conclusion != ConclusionDeny }

// Request is the subset of an inbound request the rules look at.
type Request struct {
	Identity  string
	Email     string
	IP        string
	Method    string
	Path      string
	Query     string
	UserAgent string
}
