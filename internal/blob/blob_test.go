package blob

import "testing"

func TestOwnedBy(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		userID string
		want   bool
	}{
		{"owner match", "u1/f1.pdf", "u1", true},
		{"nested file segment", "u1/reports/q3.pdf", "u1", true},
		{"other user", "u2/f1.pdf", "u1", false},
		{"prefix but not segment", "u12/f1.pdf", "u1", false},
		{"empty user", "u1/f1.pdf", "", false},
		{"bare user dir", "u1/", "u1", false},
		{"traversal", "u1/../u2/f1.pdf", "u1", false},
		{"no separator", "u1", "u1", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := OwnedBy(tt.path, tt.userID); got != tt.want {
				t.Errorf("OwnedBy(%q, %q) = %v, want %v", tt.path, tt.userID, got, tt.want)
			}
		})
	}
}

func TestObjectPathRoundTrip(t *testing.T) {
	path := ObjectPath("u1", "f1.pdf")
	if path != "u1/f1.pdf" {
		t.Fatalf("ObjectPath = %q", path)
	}
	if got := FileID(path); got != "f1.pdf" {
		t.Errorf("FileID(%q) = %q, want f1.pdf", path, got)
	}
	if !OwnedBy(path, "u1") {
		t.Error("ObjectPath output must satisfy OwnedBy for its owner")
	}
}

func TestFileIDMalformed(t *testing.T) {
	if got := FileID("no-separator"); got != "" {
		t.Errorf("FileID without separator = %q, want empty", got)
	}
}
