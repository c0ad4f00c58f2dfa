package rangespec

import "testing"

func TestParseEndpointTime(t *testing.T) {
	cases := map[string]float64{
		"T00:01:02.5": 62.5,
		"T01:02.5":    62.5,
		"T2.5":        2.5,
		"2.5":         2.5,
		"2":           2,
	}
	for raw, want := range cases {
		ep, err := ParseEndpoint(raw)
		if err != nil {
			t.Fatalf("ParseEndpoint(%q): %v", raw, err)
		}
		if ep.Kind != KindTime {
			t.Fatalf("ParseEndpoint(%q): kind = %v, want KindTime", raw, ep.Kind)
		}
		if got := ep.Seconds.Float64(); absF(got-want) > 1e-6 {
			t.Fatalf("ParseEndpoint(%q) = %v, want %v", raw, got, want)
		}
	}
}

func TestParseEndpointFrame(t *testing.T) {
	ep, err := ParseEndpoint("F41")
	if err != nil {
		t.Fatal(err)
	}
	if ep.Kind != KindFrame {
		t.Fatalf("kind = %v, want KindFrame", ep.Kind)
	}
	if ep.FramePlusOne != 42 {
		t.Fatalf("FramePlusOne = %d, want 42 (0-based 41 + 1)", ep.FramePlusOne)
	}
}

func TestParseEndpointSAP(t *testing.T) {
	for _, raw := range []string{"RAP", "SAP", "rap", "sap"} {
		ep, err := ParseEndpoint(raw)
		if err != nil {
			t.Fatalf("ParseEndpoint(%q): %v", raw, err)
		}
		if ep.Kind != KindSAP {
			t.Fatalf("ParseEndpoint(%q): kind = %v, want KindSAP", raw, ep.Kind)
		}
	}
}

func TestParseEndpointDuration(t *testing.T) {
	ep, err := ParseEndpoint("D10")
	if err != nil {
		t.Fatal(err)
	}
	if ep.Kind != KindDuration {
		t.Fatalf("kind = %v, want KindDuration", ep.Kind)
	}
	if ep.Seconds.Float64() != 10 {
		t.Fatalf("Seconds = %v, want 10", ep.Seconds.Float64())
	}

	ep2, err := ParseEndpoint("D1/3")
	if err != nil {
		t.Fatal(err)
	}
	if got := ep2.Seconds.Float64(); absF(got-1.0/3.0) > 1e-9 {
		t.Fatalf("D1/3 = %v, want 1/3", got)
	}
}

func TestParseEndpointSize(t *testing.T) {
	cases := map[string]int64{
		"S1024":  1024,
		"S1k":    1 << 10,
		"S2m":    2 << 20,
		"S1g":    1 << 30,
		"S1.5k":  int64(1.5 * (1 << 10)),
	}
	for raw, want := range cases {
		ep, err := ParseEndpoint(raw)
		if err != nil {
			t.Fatalf("ParseEndpoint(%q): %v", raw, err)
		}
		if ep.Kind != KindSize {
			t.Fatalf("ParseEndpoint(%q): kind = %v, want KindSize", raw, ep.Kind)
		}
		if ep.SizeBytes != want {
			t.Fatalf("ParseEndpoint(%q) = %d, want %d", raw, ep.SizeBytes, want)
		}
	}
}

func TestParseEndpointErrors(t *testing.T) {
	for _, raw := range []string{"", "Fxyz", "T1:2:3:4", "Sxyz"} {
		if _, err := ParseEndpoint(raw); err == nil {
			t.Fatalf("ParseEndpoint(%q): expected error", raw)
		}
	}
}

func TestRationalScaleTo(t *testing.T) {
	r := NewRational(3, 2) // 1.5 seconds
	if got := r.ScaleTo(90000); got != 135000 {
		t.Fatalf("ScaleTo(90000) = %d, want 135000", got)
	}
}

func TestParseRounding(t *testing.T) {
	cases := map[string]Rounding{
		"before":  RoundBefore,
		"AFTER":   RoundAfter,
		"Closest": RoundClosest,
	}
	for raw, want := range cases {
		got, err := ParseRounding(raw)
		if err != nil {
			t.Fatalf("ParseRounding(%q): %v", raw, err)
		}
		if got != want {
			t.Fatalf("ParseRounding(%q) = %v, want %v", raw, got, want)
		}
	}
	if _, err := ParseRounding("sideways"); err == nil {
		t.Fatal("expected error for unknown rounding")
	}
}

func absF(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
