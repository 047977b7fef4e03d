package actions

import "testing"

func TestLabelsSubset(t *testing.T) {
	cases := []struct {
		name    string
		job     []string
		runner  []string
		matches bool
	}{
		{"empty job labels match anything", nil, []string{"linux"}, true},
		{"exact match", []string{"linux"}, []string{"linux"}, true},
		{"runner has extra labels", []string{"linux"}, []string{"linux", "x64"}, true},
		{"missing required label", []string{"linux", "gpu"}, []string{"linux", "x64"}, false},
		{"disjoint sets", []string{"windows"}, []string{"linux"}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := LabelsSubset(tc.job, tc.runner); got != tc.matches {
				t.Fatalf("LabelsSubset(%v, %v) = %v, want %v", tc.job, tc.runner, got, tc.matches)
			}
		})
	}
}
