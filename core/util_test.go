package core

import "testing"

func TestCleanString(t *testing.T) {
	tests := []struct {
		name  string
		s     string
		lower bool
		want  string
	}{
		{name: "trims", s: "  플랫폼 이관\t\n", want: "플랫폼 이관"},
		{name: "lowers", s: "  Mixed CASE  ", lower: true, want: "mixed case"},
		{name: "noop", s: "clean", want: "clean"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CleanString(tt.s, tt.lower); got != tt.want {
				t.Errorf("CleanString(%q) = %q, want %q", tt.s, got, tt.want)
			}
		})
	}
}
