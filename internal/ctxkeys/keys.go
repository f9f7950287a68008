// Package ctxkeys provides unified context keys for the application.
// This package consolidates all context keys to avoid duplication and ensure consistency.
package ctxkeys

// Key is the type for all context keys in the application.
// Using a dedicated type prevents collisions with keys from other packages.
type Key string

const (
	// Emit-scoped keys. CausationID is the id of the event whose listener
	// re-emitted the current event; ChainDepth counts re-emits along a chain.
	KeyCausationID Key = "causation_id"
	KeyChainDepth  Key = "chain_depth"
)
