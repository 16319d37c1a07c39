package shield

import (
	"context"
	"errors"
	"net"
	"net/mail"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// MXResolver looks up mail exchangers. *net.Resolver satisfies it.
type MXResolver interface {
	LookupMX(ctx context.Context, name string) ([]*net.MX, error)
}

// EmailValidator screens addresses for syntax, provider type and MX records.
type EmailValidator struct {
	resolver   MXResolver
	limiter    *rate.Limiter
	timeout    time.Duration
	disposable map[string]struct{}
	free       map[string]struct{}
}

// EmailValidatorOption configures an EmailValidator.
type EmailValidatorOption func(*EmailValidator)

// WithResolver replaces the DNS resolver.
func WithResolver(r MXResolver) EmailValidatorOption {
	return func(v *EmailValidator) { v.resolver = r }
}

// WithLookupRate throttles MX lookups to rps with the given burst. A
// non-positive rps disables throttling.
func WithLookupRate(rps float64, burst int) EmailValidatorOption {
	return func(v *EmailValidator) {
		if rps <= 0 {
			v.limiter = nil
			return
		}
		if burst <= 0 {
			burst = 1
		}
		v.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithLookupTimeout bounds each MX lookup.
func WithLookupTimeout(d time.Duration) EmailValidatorOption {
	return func(v *EmailValidator) { v.timeout = d }
}

// WithDisposableDomains adds domains to the disposable list.
func WithDisposableDomains(domains ...string) EmailValidatorOption {
	return func(v *EmailValidator) {
		for _, d := range domains {
			v.disposable[strings.ToLower(strings.TrimSpace(d))] = struct{}{}
		}
	}
}

// NewEmailValidator builds a validator using the system resolver.
func NewEmailValidator(opts ...EmailValidatorOption) *EmailValidator {
	v := &EmailValidator{
		resolver:   net.DefaultResolver,
		limiter:    rate.NewLimiter(rate.Limit(20), 20),
		timeout:    3 * time.Second,
		disposable: toSet(disposableDomains),
		free:       toSet(freeDomains),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate returns every category flagged for email. MX lookup is skipped for
// syntactically invalid addresses. DNS failures other than "not found" leave
// NO_MX_RECORDS unflagged.
func (v *EmailValidator) Validate(ctx context.Context, email string) ([]EmailType, error) {
	domain, ok := emailDomain(email)
	if !ok {
		return []EmailType{EmailInvalid}, nil
	}

	var flagged []EmailType
	if _, ok := v.disposable[domain]; ok {
		flagged = append(flagged, EmailDisposable)
	}
	if _, ok := v.free[domain]; ok {
		flagged = append(flagged, EmailFree)
	}

	noMX, err := v.lacksMX(ctx, domain)
	if err != nil {
		return nil, err
	}
	if noMX {
		flagged = append(flagged, EmailNoMX)
	}
	return flagged, nil
}

func (v *EmailValidator) lacksMX(ctx context.Context, domain string) (bool, error) {
	if v.resolver == nil {
		return false, nil
	}
	if v.limiter != nil {
		if err := v.limiter.Wait(ctx); err != nil {
			return false, err
		}
	}
	if v.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, v.timeout)
		defer cancel()
	}

	records, err := v.resolver.LookupMX(ctx, domain)
	if err != nil {
		var dnsErr *net.DNSError
		if errors.As(err, &dnsErr) {
			return dnsErr.IsNotFound, nil
		}
		return false, err
	}
	for _, mx := range records {
		// RFC 7505 null MX: the domain accepts no mail.
		if mx.Host != "." && mx.Host != "" {
			return false, nil
		}
	}
	return true, nil
}

// emailDomain returns the lowercased domain of a bare address.
func emailDomain(email string) (string, bool) {
	if email == "" || len(email) > 254 {
		return "", false
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Name != "" || addr.Address != email {
		return "", false
	}
	at := strings.LastIndex(addr.Address, "@")
	if at <= 0 || at == len(addr.Address)-1 {
		return "", false
	}
	domain := strings.ToLower(addr.Address[at+1:])
	if strings.HasPrefix(domain, "[") || !strings.Contains(domain, ".") ||
		strings.HasPrefix(domain, ".") || strings.HasSuffix(domain, ".") || strings.Contains(domain, "..") {
		return "", false
	}
	return domain, true
}

// EmailRule denies sign-ups whose address is flagged with a blocked type.
type EmailRule struct {
	mode      Mode
	block     map[EmailType]struct{}
	validator *EmailValidator
}

// NewEmailRule builds the email screening rule.
func NewEmailRule(mode Mode, block []EmailType, validator *EmailValidator) *EmailRule {
	set := make(map[EmailType]struct{}, len(block))
	for _, t := range block {
		set[t] = struct{}{}
	}
	if validator == nil {
		validator = NewEmailValidator()
	}
	return &EmailRule{mode: mode, block: set, validator: validator}
}

func (r *EmailRule) Name() string { return "email" }
func (r *EmailRule) Mode() Mode   { return r.mode }

// Evaluate denies when any flagged type is blocked. The reason carries every
// flagged type, blocked or not.
func (r *EmailRule) Evaluate(ctx context.Context, req Request) (RuleResult, error) {
	flagged, err := r.validator.Validate(ctx, req.Email)
	if err != nil {
		return RuleResult{}, err
	}
	for _, t := range flagged {
		if _, blocked := r.block[t]; blocked {
			return RuleResult{
				Conclusion: ConclusionDeny,
				Reason:     Reason{Kind: ReasonEmail, EmailTypes: flagged},
			}, nil
		}
	}
	return RuleResult{Conclusion: ConclusionAllow}, nil
}

func toSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, it := range items {
		set[it] = struct{}{}
	}
	return set
}
