// Package identity resolves platform identities to internal users via the
// linked-accounts table. Resolution is exact-match only; an unknown sender
// surfaces as ErrNotLinked.
package identity
