// Package shield evaluates request-protection policies.
//
// A Policy is an ordered list of rules (attack signatures, email quality, bot
// detection, sliding-window rate limits). The Protector runs the rules in order
// and stops at the first LIVE rule that denies. Rules in DRY_RUN mode report
// what they would have done without affecting the conclusion.
//
// Counters for rate limiting live in a WindowStore: Redis in production, memory
// for single-node development and tests.
package shield
