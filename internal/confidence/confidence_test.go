package confidence

import "testing"

func TestScore(t *testing.T) {
	th := DefaultThresholds()

	tests := []struct {
		name     string
		distance float64
		matched  bool
		want     Grade
		wantLow  bool
	}{
		{"zero-distance", 0.0, true, High, false},
		{"at-high-threshold", 0.25, true, High, false},
		{"just-past-high", 0.26, true, Medium, false},
		{"at-low-threshold", 0.5, true, Medium, false},
		{"just-past-low", 0.51, true, Low, true},
		{"far", 0.99, true, Low, true},
		{"no-matches", 0.0, false, Low, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			grade, low := th.Score(tt.distance, tt.matched)
			if grade != tt.want {
				t.Errorf("grade = %s, want %s", grade, tt.want)
			}
			if low != tt.wantLow {
				t.Errorf("lowConfidence = %v, want %v", low, tt.wantLow)
			}
		})
	}
}

func TestScoreMonotonic(t *testing.T) {
	th := DefaultThresholds()
	rank := map[Grade]int{High: 2, Medium: 1, Low: 0}

	prev := 2
	for d := 0.0; d <= 1.0; d += 0.01 {
		grade, _ := th.Score(d, true)
		if rank[grade] > prev {
			t.Fatalf("grade improved as distance grew at %f", d)
		}
		prev = rank[grade]
	}
}

func TestCustomThresholds(t *testing.T) {
	th := Thresholds{High: 0.1, Low: 0.9}
	if g, _ := th.Score(0.5, true); g != Medium {
		t.Fatalf("expected Medium with widened band, got %s", g)
	}
}
