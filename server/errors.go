package server

import (
	"strconv"
	"strings"
)

const assertionPrefix = "Assert condition failed: "

// assertionError is raised by assert and rendered by the recovery middleware
// as a plain-text response. The message may embed a status code as a numeric
// prefix, e.g. "401::no user", which the middleware parses out; without a
// prefix the response defaults to 500.
type assertionError struct {
	msg string
}

func (e assertionError) Error() string {
	return assertionPrefix + e.msg
}

// assert panics with an assertionError when cond is false. Handlers use it
// for precondition failures that terminate the current request.
func assert(cond bool, msg string) {
	if !cond {
		panic(assertionError{msg: msg})
	}
}

// splitStatus extracts an embedded "NNN::" status prefix from an assertion
// message, returning the status and the remaining message.
func splitStatus(msg string) (int, string) {
	head, tail, ok := strings.Cut(msg, "::")
	if !ok {
		return 0, msg
	}
	status, err := strconv.Atoi(head)
	if err != nil || status < 100 || status > 599 {
		return 0, msg
	}
	return status, tail
}

// httpError carries an explicit status and plain-text body for failures that
// are part of the simulated API contract, such as the fixed 401 for
// unresolvable credentials.
type httpError struct {
	status int
	body   string
}

func (e httpError) Error() string {
	return e.body
}

func unauthorizedError() error {
	return httpError{status: 401, body: "Unauthorized"}
}
