// Package ledger records which (reactor, event) pairs have already been
// applied, so redelivered events do not apply side effects twice.
package ledger

import "context"

// Ledger is a set of claimed keys.
type Ledger interface {
	// Claim records key and reports true if this call was the first to do so.
	Claim(ctx context.Context, key string) (bool, error)
	// Seen reports whether key is currently claimed.
	Seen(ctx context.Context, key string) (bool, error)
	// Release forgets key so a later Claim can succeed again.
	Release(ctx context.Context, key string) error
}
