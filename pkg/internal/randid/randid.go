// Package randid generates short opaque identifiers for things the
// frontend must treat as meaningless tokens: menu/action refs (§4.8) and
// similar per-instance handles. Grounded on spec.md's "Allocate a short
// random action_ref per button" / "Allocate a short random menu_id"
// language; built on github.com/google/uuid (a teacher direct dependency
// already used for exec session ids) rather than hand-rolled randomness.
package randid

import "github.com/google/uuid"

// New returns a short opaque id. n is advisory: the id is always derived
// from a UUIDv4 and truncated to n hex characters, which is ample entropy
// for a token that only needs to be unique within one menu stack's
// lifetime, not globally.
func New(n int) string {
	id := uuid.New().String()
	// Strip hyphens so a short prefix stays dense in entropy rather than
	// spending characters on separators.
	compact := make([]byte, 0, len(id))
	for i := 0; i < len(id); i++ {
		if id[i] != '-' {
			compact = append(compact, id[i])
		}
	}
	if n <= 0 || n > len(compact) {
		return string(compact)
	}
	return string(compact[:n])
}
