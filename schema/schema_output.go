package schema

// Coverage band labels.
const (
	ExcellentLabel = "Excellent"
	GoodLabel      = "Good"
	FairLabel      = "Fair"
	PoorLabel      = "Poor"
	UnknownLabel   = "n/a"
)

// GetCoverageLabel returns a plain text band for a covered percentage.
func GetCoverageLabel(percent float64) string {
	switch {
	case percent >= 90:
		return ExcellentLabel
	case percent >= 75:
		return GoodLabel
	case percent >= 50:
		return FairLabel
	default:
		return PoorLabel
	}
}

// ItemCoverageLabel returns the band of an item, or UnknownLabel when it carries no percentage.
func ItemCoverageLabel(item Item) string {
	pct, ok := item.Data.Float(CoveredPercentField)
	if !ok {
		return UnknownLabel
	}
	return GetCoverageLabel(pct)
}
