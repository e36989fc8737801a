package server

import "fmt"

// FallbackClientID is the client id of a catch-all scope rule. A rule with
// this client id and no audience constraint supplies the scope for any client
// that no other rule matches.
const FallbackClientID = "default"

// ResolveScope resolves the effective scope string for a client/audience
// pair against an ordered rule list. The first rule that matches both the
// client id and, when the rule constrains one, the audience wins.
//
// The diagnostics are part of the simulated API contract and are returned
// verbatim as the error body: an unknown client yields
//
//	Could not find application with clientID: <id>
//
// and a client whose configured audience does not match the requested one
// yields
//
//	Found application matching clientID, <id>, but incorrect audience, configured: <expected> :: passed: <actual>
func ResolveScope(rules []ClientScopeRule, clientID, audience string) (string, error) {
	var audienceMismatch error
	for _, rule := range rules {
		if rule.ClientID != clientID {
			continue
		}
		if rule.Audience == "" || rule.Audience == audience {
			return rule.Scope, nil
		}
		if audienceMismatch == nil {
			audienceMismatch = fmt.Errorf(
				"Found application matching clientID, %s, but incorrect audience, configured: %s :: passed: %s",
				clientID, rule.Audience, audience)
		}
	}
	if audienceMismatch != nil {
		return "", audienceMismatch
	}
	for _, rule := range rules {
		if rule.ClientID == FallbackClientID && rule.Audience == "" {
			return rule.Scope, nil
		}
	}
	return "", fmt.Errorf("Could not find application with clientID: %s", clientID)
}
