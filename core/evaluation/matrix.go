package evaluation

// scoreMatrix is the fixed contribution matrix. Scores are monotonically
// non-decreasing along both axes: a higher-authority method or a broader
// scope never lowers the score.
var scoreMatrix = map[ContributionMethod]map[ContributionScope]int{
	MethodSupport: {ScopeDirected: 1, ScopeIndependent: 1, ScopeCollaborative: 2, ScopeStrategic: 2},
	MethodHandsOn: {ScopeDirected: 1, ScopeIndependent: 2, ScopeCollaborative: 2, ScopeStrategic: 3},
	MethodLeading: {ScopeDirected: 2, ScopeIndependent: 2, ScopeCollaborative: 3, ScopeStrategic: 4},
	MethodOverall: {ScopeDirected: 2, ScopeIndependent: 3, ScopeCollaborative: 4, ScopeStrategic: 4},
}

// Score looks up the contribution score for a (method, scope) pair.
// "기여없음" on either axis yields 0. Inputs outside the enumerated domain are
// the caller's bug; they yield 0 rather than panicking.
func Score(method ContributionMethod, scope ContributionScope) int {
	if method == MethodNone || scope == ScopeNone {
		return 0
	}
	return scoreMatrix[method][scope]
}

// Normalize applies the no-contribution shortcut: selecting "기여없음" on
// either axis forces the other axis to "기여없음" as well.
func Normalize(method ContributionMethod, scope ContributionScope) (ContributionMethod, ContributionScope) {
	if method == MethodNone || scope == ScopeNone {
		return MethodNone, ScopeNone
	}
	return method, scope
}

// DeriveScore returns the matrix score for a task's axes, or nil when either
// axis is still unset. The score field is never user-editable; this is its
// only source.
func DeriveScore(method ContributionMethod, scope ContributionScope) *int {
	if method == "" || scope == "" {
		return nil
	}
	method, scope = Normalize(method, scope)
	s := Score(method, scope)
	return &s
}
