package logger

import "testing"

func TestRedact_HidesSecretValues(t *testing.T) {
	got := redact([]interface{}{"bot_token", "123:abc", "user_id", int64(7), "GITHUB_TOKEN", "ghp"})

	want := []interface{}{"bot_token", "[REDACTED]", "user_id", int64(7), "GITHUB_TOKEN", "[REDACTED]"}
	if len(got) != len(want) {
		t.Fatalf("expected %d items, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("item %d: expected %v, got %v", i, want[i], got[i])
		}
	}
}

func TestRedact_KeepsDanglingKey(t *testing.T) {
	got := redact([]interface{}{"a", 1, "dangling"})
	if len(got) != 3 || got[2] != "dangling" {
		t.Fatalf("unexpected result: %v", got)
	}
}
