package core

// ApplyEvent folds one detection into a daily summary and returns the new
// summary. A nil prior is treated as an empty summary for the day.
//
// The average is maintained incrementally from the pre-increment total:
// newAvg = (oldAvg*oldTotal + confidence) / (oldTotal + 1).
func ApplyEvent(prior *DailySummary, detectionType DetectionType, status Status, confidence int) DailySummary {
	var next DailySummary
	if prior != nil {
		next = *prior
	}

	oldTotal := float64(next.TotalScans)
	next.AvgConfidence = (next.AvgConfidence*oldTotal + float64(confidence)) / (oldTotal + 1)
	next.TotalScans++

	switch status {
	case StatusSafe:
		next.SafeCount++
	case StatusPhishing:
		next.PhishingCount++
	default:
		next.SuspiciousCount++
	}

	switch detectionType {
	case DetectionTypeURL:
		next.URLScans++
	default:
		next.EmailScans++
	}

	return next
}
