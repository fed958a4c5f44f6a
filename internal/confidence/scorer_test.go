package confidence

import (
	"testing"

	"github.com/sells-group/validator-cli/internal/provider"
)

func TestScore_AllSignalsPositive(t *testing.T) {
	res := Score(true, true, provider.Primary, true)

	if res.Score != 100 {
		t.Errorf("expected 100, got %v", res.Score)
	}
	if res.Classification != ClassificationHigh {
		t.Errorf("expected HIGH, got %s", res.Classification)
	}
}

func TestScore_PointTable(t *testing.T) {
	cases := []struct {
		name           string
		validFormat    bool
		whatsapp       bool
		provider       string
		history        bool
		wantScore      float64
		wantClass      string
		wantProviderPt float64
	}{
		{"primary provider full house", true, true, provider.Primary, true, 100, ClassificationHigh, 25},
		{"fallback provider full house", true, true, provider.Fallback, true, 85, ClassificationHigh, 10},
		{"unknown provider", true, true, "", true, 75, ClassificationMedium, 0},
		{"no history primary", true, true, provider.Primary, false, 90, ClassificationHigh, 25},
		{"whatsapp absent", true, false, provider.Primary, false, 60, ClassificationMedium, 25},
		{"invalid format fallback", false, true, provider.Fallback, false, 55, ClassificationLow, 10},
		{"everything negative", false, false, "", false, 15, ClassificationLow, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := Score(tc.validFormat, tc.whatsapp, tc.provider, tc.history)
			if res.Score != tc.wantScore {
				t.Errorf("score = %v, want %v", res.Score, tc.wantScore)
			}
			if res.Classification != tc.wantClass {
				t.Errorf("classification = %s, want %s", res.Classification, tc.wantClass)
			}
			if res.Breakdown["provider_reliability"] != tc.wantProviderPt {
				t.Errorf("provider_reliability = %v, want %v",
					res.Breakdown["provider_reliability"], tc.wantProviderPt)
			}
		})
	}
}

// The breakdown must sum exactly to the score: with the fixed point table the
// clamp can never activate, so the unclamped sum equals the final score for
// every input combination.
func TestScore_BreakdownSumsToScore(t *testing.T) {
	providers := []string{provider.Primary, provider.Fallback, "", "other"}
	bools := []bool{true, false}

	for _, validFormat := range bools {
		for _, whatsapp := range bools {
			for _, prov := range providers {
				for _, history := range bools {
					res := Score(validFormat, whatsapp, prov, history)

					if res.Score < 0 || res.Score > 100 {
						t.Fatalf("score %v out of range", res.Score)
					}

					sum := 0.0
					for _, pts := range res.Breakdown {
						sum += pts
					}
					if sum != res.Score {
						t.Errorf("breakdown sum %v != score %v (format=%v whatsapp=%v provider=%q history=%v)",
							sum, res.Score, validFormat, whatsapp, prov, history)
					}
				}
			}
		}
	}
}

func TestScore_BreakdownSignals(t *testing.T) {
	res := Score(true, false, provider.Fallback, true)

	want := map[string]float64{
		"format":               20,
		"provider_reliability": 10,
		"whatsapp_detection":   0,
		"history":              10,
		"consistency":          15,
	}
	for signal, pts := range want {
		if res.Breakdown[signal] != pts {
			t.Errorf("breakdown[%s] = %v, want %v", signal, res.Breakdown[signal], pts)
		}
	}
	if len(res.Breakdown) != len(want) {
		t.Errorf("expected %d breakdown entries, got %d", len(want), len(res.Breakdown))
	}
}

func TestClassify_Boundaries(t *testing.T) {
	cases := []struct {
		score float64
		want  string
	}{
		{100, ClassificationHigh},
		{80, ClassificationHigh},
		{79.999, ClassificationMedium},
		{60, ClassificationMedium},
		{59.999, ClassificationLow},
		{0, ClassificationLow},
	}
	for _, tc := range cases {
		if got := classify(tc.score); got != tc.want {
			t.Errorf("classify(%v) = %s, want %s", tc.score, got, tc.want)
		}
	}
}

// Consistency credit is granted even when every other signal is negative.
func TestScore_ConsistencyAlwaysGranted(t *testing.T) {
	res := Score(false, false, "", false)
	if res.Breakdown["consistency"] != 15 {
		t.Errorf("consistency = %v, want 15", res.Breakdown["consistency"])
	}
	if res.Score != 15 {
		t.Errorf("score = %v, want 15", res.Score)
	}
}
