package bot

import "testing"

func TestParseDecision(t *testing.T) {
	tests := []struct {
		data   string
		id     int64
		accept bool
		ok     bool
	}{
		{"appt:ok:17", 17, true, true},
		{"appt:no:3", 3, false, true},
		{"appt:ok:0", 0, false, false},
		{"appt:ok:-5", 0, false, false},
		{"appt:ok:abc", 0, false, false},
		{"appt:maybe:3", 0, false, false},
		{"", 0, false, false},
		{"something else", 0, false, false},
	}
	for _, tc := range tests {
		id, accept, ok := parseDecision(tc.data)
		if id != tc.id || accept != tc.accept || ok != tc.ok {
			t.Errorf("parseDecision(%q) = (%d, %v, %v), want (%d, %v, %v)",
				tc.data, id, accept, ok, tc.id, tc.accept, tc.ok)
		}
	}
}
