package catalog

import "testing"

func TestVersionNewer(t *testing.T) {
	cases := []struct {
		current, candidate string
		want                bool
	}{
		{"1.0.0", "1.0.0", false},
		{"1.0.0", "0.9.9", false},
		{"1.0.0", "1.0.1", true},
		{"1.0", "1.0.1", true},
		{"1.0.0", "1.0", false},
		{"1.2", "2", true},
		{"1.9", "1.10", true},
		{"bad", "1.0.0", false},
		{"1.0.0", "bad", true},
	}

	for _, tc := range cases {
		if got := VersionNewer(tc.current, tc.candidate); got != tc.want {
			t.Errorf("VersionNewer(%q, %q) = %v, want %v", tc.current, tc.candidate, got, tc.want)
		}
	}
}
