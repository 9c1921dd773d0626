package chat

import "testing"

func TestNormalizeLimit(t *testing.T) {
	tests := []struct {
		name string
		in   int32
		want int32
	}{
		{"zero defaults", 0, DefaultPageLimit},
		{"negative defaults", -5, DefaultPageLimit},
		{"in range passes", 100, 100},
		{"over cap clamps", MaxPageLimit + 1, MaxPageLimit},
	}
	for _, tt := range tests {
		if got := NormalizeLimit(tt.in); got != tt.want {
			t.Errorf("%s: NormalizeLimit(%d) = %d, want %d", tt.name, tt.in, got, tt.want)
		}
	}
}

func TestValidRole(t *testing.T) {
	for _, role := range []string{RoleUser, RoleAssistant, RoleSystem} {
		if !ValidRole(role) {
			t.Errorf("ValidRole(%q) = false", role)
		}
	}
	for _, role := range []string{"", "admin", "USER", "tool"} {
		if ValidRole(role) {
			t.Errorf("ValidRole(%q) = true", role)
		}
	}
}
