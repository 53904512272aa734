package confidence

// #region grade

// Grade is the coarse confidence signal derived from the best match
// distance: High > Medium > Low.
type Grade string

const (
	High   Grade = "High"
	Medium Grade = "Medium"
	Low    Grade = "Low"
)

// #endregion grade

// #region thresholds

// Thresholds partitions the distance axis with two cut points,
// High < Low. Distances at or below High grade High; between the two,
// Medium; beyond Low (or with no matches at all), Low.
type Thresholds struct {
	High float64
	Low  float64
}

// DefaultThresholds returns the standard cut points.
func DefaultThresholds() Thresholds {
	return Thresholds{High: 0.25, Low: 0.5}
}

// #endregion thresholds

// #region score

// Score converts a best distance into a grade and the low-confidence
// flag. matched=false means the query returned nothing, which is
// always Low regardless of distance.
func (t Thresholds) Score(bestDistance float64, matched bool) (Grade, bool) {
	switch {
	case !matched:
		return Low, true
	case bestDistance <= t.High:
		return High, false
	case bestDistance <= t.Low:
		return Medium, false
	default:
		return Low, true
	}
}

// #endregion score
