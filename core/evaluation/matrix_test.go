package evaluation

import "testing"

func TestScore(t *testing.T) {
	tests := []struct {
		name   string
		method ContributionMethod
		scope  ContributionScope
		want   int
	}{
		{name: "support directed", method: MethodSupport, scope: ScopeDirected, want: 1},
		{name: "support strategic", method: MethodSupport, scope: ScopeStrategic, want: 2},
		{name: "hands-on independent", method: MethodHandsOn, scope: ScopeIndependent, want: 2},
		{name: "hands-on strategic", method: MethodHandsOn, scope: ScopeStrategic, want: 3},
		{name: "leading collaborative", method: MethodLeading, scope: ScopeCollaborative, want: 3},
		{name: "overall strategic", method: MethodOverall, scope: ScopeStrategic, want: 4},
		{name: "overall directed", method: MethodOverall, scope: ScopeDirected, want: 2},
		{name: "no method", method: MethodNone, scope: ScopeStrategic, want: 0},
		{name: "no scope", method: MethodOverall, scope: ScopeNone, want: 0},
		{name: "unknown method", method: "감독", scope: ScopeDirected, want: 0},
		{name: "unknown scope", method: MethodSupport, scope: "광역", want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Score(tt.method, tt.scope); got != tt.want {
				t.Errorf("Score(%s, %s) = %d, want %d", tt.method, tt.scope, got, tt.want)
			}
		})
	}
}

// The matrix must never reward less for a higher-authority method or a broader
// scope. Methods and Scopes are declared in ascending order.
func TestScoreMonotonic(t *testing.T) {
	for mi, method := range Methods {
		for si, scope := range Scopes {
			got := Score(method, scope)
			if got < 1 || got > 4 {
				t.Fatalf("Score(%s, %s) = %d, out of range", method, scope, got)
			}
			if mi > 0 {
				if prev := Score(Methods[mi-1], scope); got < prev {
					t.Errorf("Score(%s, %s) = %d < Score(%s, %s) = %d", method, scope, got, Methods[mi-1], scope, prev)
				}
			}
			if si > 0 {
				if prev := Score(method, Scopes[si-1]); got < prev {
					t.Errorf("Score(%s, %s) = %d < Score(%s, %s) = %d", method, scope, got, method, Scopes[si-1], prev)
				}
			}
		}
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name       string
		method     ContributionMethod
		scope      ContributionScope
		wantMethod ContributionMethod
		wantScope  ContributionScope
	}{
		{name: "both set", method: MethodLeading, scope: ScopeStrategic, wantMethod: MethodLeading, wantScope: ScopeStrategic},
		{name: "no method forces scope", method: MethodNone, scope: ScopeStrategic, wantMethod: MethodNone, wantScope: ScopeNone},
		{name: "no scope forces method", method: MethodOverall, scope: ScopeNone, wantMethod: MethodNone, wantScope: ScopeNone},
		{name: "both none", method: MethodNone, scope: ScopeNone, wantMethod: MethodNone, wantScope: ScopeNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, s := Normalize(tt.method, tt.scope)
			if m != tt.wantMethod || s != tt.wantScope {
				t.Errorf("Normalize() = (%s, %s), want (%s, %s)", m, s, tt.wantMethod, tt.wantScope)
			}
		})
	}
}

func TestDeriveScore(t *testing.T) {
	if got := DeriveScore("", ScopeStrategic); got != nil {
		t.Errorf("DeriveScore with unset method = %d, want nil", *got)
	}
	if got := DeriveScore(MethodHandsOn, ""); got != nil {
		t.Errorf("DeriveScore with unset scope = %d, want nil", *got)
	}
	if got := DeriveScore(MethodHandsOn, ScopeIndependent); got == nil || *got != 2 {
		t.Errorf("DeriveScore(hands-on, independent) = %v, want 2", got)
	}
	if got := DeriveScore(MethodNone, ScopeStrategic); got == nil || *got != 0 {
		t.Errorf("DeriveScore(none, strategic) = %v, want 0", got)
	}
}
