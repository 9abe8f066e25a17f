package profile

// materialityThreshold drops topics that hold less than 1% of the total weight.
const materialityThreshold = 0.01

// Normalize turns raw per-topic scores into a probability-like distribution.
// The total must be positive; otherwise an empty map is returned. Entries
// below the materiality threshold are dropped and the remainder renormalized
// so the weights sum to 1.0 again. Pure and deterministic.
func Normalize(raw map[string]float64) map[string]float64 {
	total := 0.0
	for _, v := range raw {
		total += v
	}
	if total <= 0 {
		return map[string]float64{}
	}

	normalized := make(map[string]float64, len(raw))
	kept := 0.0
	for topic, v := range raw {
		w := v / total
		if w < materialityThreshold {
			continue
		}
		normalized[topic] = w
		kept += w
	}

	if kept <= 0 {
		return map[string]float64{}
	}

	// Renormalize the survivors
	for topic, w := range normalized {
		normalized[topic] = w / kept
	}

	return normalized
}
