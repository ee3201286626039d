package translate

import "fmt"

// Mode selects how the quota check and the balance update are coordinated.
type Mode string

const (
	// ModeBaseline checks the snapshot and overwrites used after the call.
	// Concurrent requests from one user can overshoot the quota.
	ModeBaseline Mode = "baseline"
	// ModeSerialized runs one request per user at a time within this process.
	ModeSerialized Mode = "serialized"
	// ModeAtomic reserves tokens with a conditional store update before the call.
	ModeAtomic Mode = "atomic"
)

// ParseMode validates a configured mode name. Empty means ModeAtomic.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case "":
		return ModeAtomic, nil
	case ModeBaseline, ModeSerialized, ModeAtomic:
		return m, nil
	default:
		return "", fmt.Errorf("unknown consistency mode %q", s)
	}
}
