package models

import "strings"

// Identity is a student's canonical identity: their email, trimmed and
// lowercased. Every comparison, lock and constraint in the engine keys on
// this form, never on the raw submitted string.
type Identity string

// NormalizeIdentity canonicalizes a raw email into an Identity. It is
// idempotent.
func NormalizeIdentity(raw string) Identity {
	return Identity(strings.ToLower(strings.TrimSpace(raw)))
}

func (i Identity) String() string {
	return string(i)
}
