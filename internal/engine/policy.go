package engine

import (
	"fmt"
	"strings"
)

// Policy decides what a step does when the store fails underneath it
type Policy int

const (
	// PolicyDefault takes the step's entry in DefaultPolicies
	PolicyDefault Policy = iota
	// PassThrough logs the failure and lets the submission continue
	PassThrough
	// Abort fails the submission
	Abort
)

func (p Policy) String() string {
	switch p {
	case Abort:
		return "abort"
	case PassThrough:
		return "passThrough"
	default:
		return "default"
	}
}

// ParsePolicy parses "passThrough" or "abort", case-insensitively
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "passthrough", "pass-through", "pass_through", "open":
		return PassThrough, nil
	case "abort", "closed":
		return Abort, nil
	default:
		return PolicyDefault, fmt.Errorf("unknown error policy %q", s)
	}
}

// Policies holds the infrastructure-error policy of each pre-commit step.
// Reconciliation runs after the signal is committed and always passes through.
type Policies struct {
	Proximity Policy
	Provision Policy
	Dedup     Policy
}

// DefaultPolicies passes through lookup failures and aborts when a
// container cannot be provisioned.
var DefaultPolicies = Policies{
	Proximity: PassThrough,
	Provision: Abort,
	Dedup:     PassThrough,
}

// resolve replaces PolicyDefault entries with the matching entry of def
func (p Policies) resolve(def Policies) Policies {
	pick := func(v, d Policy) Policy {
		if v == PolicyDefault {
			return d
		}
		return v
	}
	return Policies{
		Proximity: pick(p.Proximity, def.Proximity),
		Provision: pick(p.Provision, def.Provision),
		Dedup:     pick(p.Dedup, def.Dedup),
	}
}
