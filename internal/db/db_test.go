package db

import (
	"errors"
	"testing"
)

func TestPairsToMap(t *testing.T) {
	m := PairsToMap([]string{"id", "7", "used_tokens_this_period", "80", "dangling"})

	if len(m) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(m))
	}
	if m["id"] != "7" || m["used_tokens_this_period"] != "80" {
		t.Errorf("unexpected map %v", m)
	}
}

func TestPairsToMap_Empty(t *testing.T) {
	if m := PairsToMap(nil); len(m) != 0 {
		t.Errorf("expected empty map, got %v", m)
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("connection reset")
	err := &Error{Op: OpEval, Err: cause}

	if err.Error() != "EVALSHA: connection reset" {
		t.Errorf("Error() = %q", err.Error())
	}
	if !errors.Is(err, cause) {
		t.Error("expected errors.Is to match cause")
	}
}
