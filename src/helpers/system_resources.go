package helpers

// Approximate resident footprint of one headless Chrome tab with the results page loaded.
const sessionFootprintMB = 256

// GetRecommendedMemoryLimit calculates a safe memory budget for the process.
// Default policy: 75% of Total RAM.
// Fallback: 512MB.
func GetRecommendedMemoryLimit() int {
	totalMB := GetTotalSystemMemoryMB()
	if totalMB == 0 {
		return 512
	}

	limit := int(float64(totalMB) * 0.75)

	if limit < 512 {
		if totalMB < 512 {
			return totalMB
		}
		return 512
	}

	return limit
}

// RecommendedSessionCap is the number of browser sessions that fit in the
// memory budget, never below one. Used when browser.max_sessions is unset.
func RecommendedSessionCap() int {
	return sessionCapFor(GetRecommendedMemoryLimit())
}

func sessionCapFor(budgetMB int) int {
	n := budgetMB / sessionFootprintMB
	if n < 1 {
		return 1
	}
	return n
}
