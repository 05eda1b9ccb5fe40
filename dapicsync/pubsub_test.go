package dapicsync

import "testing"

func TestValidScheduledScope(t *testing.T) {
	for _, scope := range []string{ScheduledScopeCurrentMonth, ScheduledScopeFullHistory} {
		if !ValidScheduledScope(scope) {
			t.Fatalf("%q must be a valid scope", scope)
		}
	}
	for _, scope := range []string{"", "everything", "CURRENT_MONTH"} {
		if ValidScheduledScope(scope) {
			t.Fatalf("%q must be rejected", scope)
		}
	}
}

func TestEnvIntDefault(t *testing.T) {
	if got := envIntDefault("DAPIC_SYNC_MAX_PAGES", 100); got != 100 {
		t.Fatalf("unset env: got %d, want the default", got)
	}

	t.Setenv("DAPIC_SYNC_MAX_PAGES", "10")
	if got := envIntDefault("DAPIC_SYNC_MAX_PAGES", 100); got != 10 {
		t.Fatalf("got %d, want 10", got)
	}

	t.Setenv("DAPIC_SYNC_MAX_PAGES", "-3")
	if got := envIntDefault("DAPIC_SYNC_MAX_PAGES", 100); got != 100 {
		t.Fatalf("non-positive value must fall back, got %d", got)
	}

	t.Setenv("DAPIC_SYNC_MAX_PAGES", "lots")
	if got := envIntDefault("DAPIC_SYNC_MAX_PAGES", 100); got != 100 {
		t.Fatalf("garbage value must fall back, got %d", got)
	}
}
