package bitget

import "testing"

// go test -v --run TestParseInstType
func TestParseInstType(t *testing.T) {
	if _, err := ParseInstType("SPOT"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if _, err := ParseInstType("MARGIN"); err == nil {
		t.Error("expected error for unknown instType")
	}
}
