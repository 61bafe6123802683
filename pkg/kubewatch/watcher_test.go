package kubewatch

import "testing"

// TestSupportsStreamingListGatedRanges covers §4.1's exact gated ranges:
// >=1.32,<1.33 or >=1.34. Versions outside both ranges, including the
// 1.33 gap where the feature shipped but defaulted off, fall back to
// ListWatch.
func TestSupportsStreamingListGatedRanges(t *testing.T) {
	cases := []struct {
		gitVersion string
		want       bool
	}{
		{"v1.31.5", false},
		{"v1.32.0", true},
		{"v1.32.4", true},
		{"v1.33.0", false},
		{"v1.33.9", false},
		{"v1.34.0", true},
		{"v1.35.2", true},
		{"1.32.1", true},
		{"v1.32.1-eks-abc123", true},
		{"not-a-version", false},
		{"", false},
	}

	for _, tc := range cases {
		got := SupportsStreamingList(tc.gitVersion)
		if got != tc.want {
			t.Errorf("SupportsStreamingList(%q) = %v, want %v", tc.gitVersion, got, tc.want)
		}
	}
}
