package server

import "context"

// Rule is a claim-augmentation function run during token issuance. Rules may
// mutate the user, add or overwrite claims on the ID and access tokens, and
// perform outbound calls through ctx. Returning an error aborts issuance for
// the current request; nothing is retried.
type Rule func(ctx context.Context, rc *RuleContext) error

// RuleContext is the accumulating claims/user context threaded through the
// rules pipeline. It is built per token request and never persisted. Claims
// written to IDToken and AccessToken are merged into the respective tokens
// after every rule has run, overriding the standard claims on collision.
type RuleContext struct {
	User      *User
	ClientID  string
	Audience  string
	Scope     string
	GrantType string
	Issuer    string

	IDToken     map[string]any
	AccessToken map[string]any

	// Body carries the raw token request fields for rules that key off
	// arbitrary request data.
	Body map[string]any
}

// RunRules executes the pipeline strictly in declared order. Each rule runs
// to completion, including any outbound work it performs, before the next
// rule starts, so later rules can depend on fields set by earlier ones. The
// first error stops the pipeline.
func RunRules(ctx context.Context, rules []Rule, rc *RuleContext) error {
	for _, rule := range rules {
		if err := rule(ctx, rc); err != nil {
			return err
		}
	}
	return nil
}
