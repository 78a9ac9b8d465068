package security

import (
	"path/filepath"
	"testing"
)

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"legacy", "legacy"},
		{"current v2", "current_v2"},
		{"../../etc/passwd", "etc_passwd"},
		{"a//b\\c", "a_b_c"},
		{"", "unknown"},
		{"...", "unknown"},
		{"model-1.2_x", "model-1.2_x"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := SanitizeFilename(tt.in); got != tt.want {
				t.Errorf("SanitizeFilename(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSanitizeFilename_Length(t *testing.T) {
	long := make([]byte, 300)
	for i := range long {
		long[i] = 'a'
	}
	if got := SanitizeFilename(string(long)); len(got) != maxNameLen {
		t.Errorf("len = %d, want %d", len(got), maxNameLen)
	}
}

func TestJoinWithin(t *testing.T) {
	tests := []struct {
		name    string
		dir     string
		file    string
		want    string
		wantErr bool
	}{
		{"plain", "plots", "comparison.png", filepath.Join("plots", "comparison.png"), false},
		{"nested", "plots", "sub/x.png", filepath.Join("plots", "sub", "x.png"), false},
		{"absolute dir", "/tmp/plots", "a.png", "/tmp/plots/a.png", false},
		{"parent escape", "plots", "../x.png", "", true},
		{"deep escape", "plots", "a/../../x.png", "", true},
		{"dir itself", "plots", ".", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := JoinWithin(tt.dir, tt.file)
			if (err != nil) != tt.wantErr {
				t.Fatalf("JoinWithin(%q, %q) error = %v, wantErr %v", tt.dir, tt.file, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("JoinWithin(%q, %q) = %q, want %q", tt.dir, tt.file, got, tt.want)
			}
		})
	}
}
