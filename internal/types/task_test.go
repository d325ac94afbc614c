package types

import "testing"

func TestComplexityLevel(t *testing.T) {
	tests := []struct {
		c     Complexity
		level int
	}{
		{ComplexityLow, 0},
		{ComplexityMedium, 1},
		{ComplexityHigh, 2},
		{ComplexityCritical, 3},
		{Complexity("extreme"), -1},
	}

	for _, tt := range tests {
		if got := tt.c.Level(); got != tt.level {
			t.Errorf("%s.Level() = %d, want %d", tt.c, got, tt.level)
		}
	}
}

func TestParseComplexity(t *testing.T) {
	tests := []struct {
		input string
		valid bool
	}{
		{"low", true},
		{"medium", true},
		{"high", true},
		{"critical", true},
		{"CRITICAL", false},
		{"", false},
	}

	for _, tt := range tests {
		_, ok := ParseComplexity(tt.input)
		if ok != tt.valid {
			t.Errorf("ParseComplexity(%q) valid = %v, want %v", tt.input, ok, tt.valid)
		}
	}
}

func TestParseTaskType(t *testing.T) {
	for _, tt := range AllTaskTypes() {
		parsed, ok := ParseTaskType(string(tt))
		if !ok || parsed != tt {
			t.Errorf("ParseTaskType(%q) = %q, %v", tt, parsed, ok)
		}
	}

	if _, ok := ParseTaskType("deploy"); ok {
		t.Error("expected deploy to be rejected")
	}
}

func TestTierOrder(t *testing.T) {
	ordered := []Tier{TierSelfHosted, TierHostedFast, TierAggregator, TierCommunity}
	for i, tier := range ordered {
		if got := tier.Order(); got != i {
			t.Errorf("%s.Order() = %d, want %d", tier, got, i)
		}
	}
	if got := Tier("mainframe").Order(); got != -1 {
		t.Errorf("unknown tier order = %d, want -1", got)
	}
}
