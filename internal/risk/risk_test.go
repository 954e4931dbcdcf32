package risk

import "testing"

func TestAllow(t *testing.T) {
	limits := Limits{MaxLotsPerTrade: 5}
	if !limits.Allow(5) {
		t.Fatalf("expected lots at the cap to pass")
	}
	if limits.Allow(6) {
		t.Fatalf("expected lots above the cap to fail")
	}
}

func TestAllowUnlimited(t *testing.T) {
	limits := Limits{}
	if !limits.Allow(1000) {
		t.Fatalf("expected zero cap to disable the check")
	}
}
