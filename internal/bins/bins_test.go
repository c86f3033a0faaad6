package bins

import "testing"

func f(v float64) *float64 { return &v }

func b(v bool) *bool { return &v }

func fxBandSpec() Spec {
	return Spec{Bins: []Bin{
		{BinID: "FX_LT_800K", Max: f(800000)},
		{BinID: "FX_800K_1M", Min: f(800000), Max: f(1000000)},
		{BinID: "FX_1M_1_2M", Min: f(1000000), Max: f(1200000)},
		{BinID: "FX_GE_1_2M", Min: f(1200000)},
	}}
}

func TestValidate_NoOverlapsNoGaps(t *testing.T) {
	if errs := Validate(fxBandSpec()); len(errs) != 0 {
		t.Fatalf("expected valid spec, got %v", errs)
	}
}

func TestValidate_DetectsOverlap(t *testing.T) {
	spec := Spec{Bins: []Bin{
		{BinID: "a", Max: f(10), IncludeMax: b(true)},
		{BinID: "b", Min: f(5), Max: f(20), IncludeMax: b(true)},
	}}
	if errs := Validate(spec); len(errs) == 0 {
		t.Fatalf("expected overlap error")
	}
}

func TestValidate_DetectsGap(t *testing.T) {
	spec := Spec{Bins: []Bin{
		{BinID: "a", Max: f(10)},
		{BinID: "b", Min: f(20)},
	}}
	if errs := Validate(spec); len(errs) == 0 {
		t.Fatalf("expected gap error")
	}
}

func TestValidate_RequiresAtLeastTwoBins(t *testing.T) {
	spec := Spec{Bins: []Bin{{BinID: "only"}}}
	if errs := Validate(spec); len(errs) == 0 {
		t.Fatalf("expected single-bin spec to be rejected")
	}
}

func TestValueToBin_BoundaryInclusivity(t *testing.T) {
	spec := fxBandSpec()

	// include_min defaults to true, so the exact boundary lands in the bin
	// that starts there.
	binID, reason := ValueToBin(800000.0, spec)
	if reason != "" || binID != "FX_800K_1M" {
		t.Fatalf("expected exact boundary 800000 to land in FX_800K_1M, got %q reason=%q", binID, reason)
	}

	binID, reason = ValueToBin(799999.99, spec)
	if reason != "" || binID != "FX_LT_800K" {
		t.Fatalf("expected value below boundary in FX_LT_800K, got %q reason=%q", binID, reason)
	}
}

func TestValueToBin_MissingAndNonNumeric(t *testing.T) {
	spec := fxBandSpec()
	binID, reason := ValueToBin(nil, spec)
	if binID != OutcomeUnknown || reason != "missing_value" {
		t.Fatalf("expected UNKNOWN/missing_value, got %q/%q", binID, reason)
	}
	binID, reason = ValueToBin("not-a-number", spec)
	if binID != OutcomeUnknown || reason != "invalid_numeric_value" {
		t.Fatalf("expected UNKNOWN/invalid_numeric_value, got %q/%q", binID, reason)
	}
}

func TestValueToBin_NumericStringCoerces(t *testing.T) {
	binID, reason := ValueToBin("1250000", fxBandSpec())
	if reason != "" || binID != "FX_GE_1_2M" {
		t.Fatalf("expected numeric string to map, got %q reason=%q", binID, reason)
	}
}

func TestValueToBin_OutOfRange(t *testing.T) {
	spec := Spec{Bins: []Bin{
		{BinID: "low", Min: f(0), Max: f(10)},
		{BinID: "high", Min: f(10), Max: f(20)},
	}}
	binID, reason := ValueToBin(25.0, spec)
	if binID != OutcomeUnknown || reason != "out_of_range" {
		t.Fatalf("expected UNKNOWN/out_of_range, got %q/%q", binID, reason)
	}
}

func TestValueToBin_FirstMatchWinsOnDeclarationOrder(t *testing.T) {
	// Two deliberately overlapping bins (invalid spec) to exercise the
	// "first declared match wins" ordering policy independent of validation.
	spec := Spec{Bins: []Bin{
		{BinID: "first", Min: f(0), Max: f(100), IncludeMax: b(true)},
		{BinID: "second", Min: f(50), Max: f(150), IncludeMax: b(true)},
	}}
	binID, _ := ValueToBin(75.0, spec)
	if binID != "first" {
		t.Fatalf("expected first declared bin to win, got %q", binID)
	}
}
