package profile

import "math"

const (
	// ewmaAlpha is the smoothing factor for focus, depth, and intent blending.
	ewmaAlpha = 0.1

	// decayRatePerDay is λ = 1/30: a topic score loses ~63% of its value
	// after 30 idle days.
	decayRatePerDay = 1.0 / 30.0

	// seedConfidenceThreshold gates cold-start seeding and sessionsSeen growth.
	// Low-quality sessions still shape topic scores but never grow confidence.
	seedConfidenceThreshold = 0.5
)

// DecayFactor returns the multiplicative attenuation for raw topic scores
// aged by elapsedDays, clamped to [0,1].
func DecayFactor(elapsedDays float64) float64 {
	return clamp01(math.Exp(-decayRatePerDay * elapsedDays))
}

// Merge folds a session snapshot into the long-term profile. Pure: neither
// argument is mutated; persistence is the caller's responsibility.
//
// Raw topic scores intentionally compound across sessions without an upper
// bound; exponential decay is the only attenuation applied.
func Merge(old Profile, snap Snapshot) Profile {
	if old.SessionsSeen == 0 {
		return coldStart(old, snap)
	}
	return warmUpdate(old, snap)
}

// coldStart seeds an empty profile from its first qualifying snapshot.
// Low-confidence sessions (including the empty-session sentinel) are rejected
// and the profile returned unchanged.
func coldStart(old Profile, snap Snapshot) Profile {
	if snap.EngagementConfidence < seedConfidenceThreshold {
		return old.Clone()
	}

	out := EmptyProfile()
	for topic, ts := range snap.Topics {
		out.Topics[topic] = ts.RawScore
	}
	for intent, w := range snap.IntentScores {
		out.IntentAggregate[intent] = w
	}
	out.EWMAFocus = snap.EngagementConfidence
	out.EWMADepth = 1 - snap.DiversityEntropy
	out.SessionsSeen = 1
	out.Confidence = 1.0 / MaxSessions
	t := snap.CalculatedAt
	out.LastUpdated = &t
	return out
}

func warmUpdate(old Profile, snap Snapshot) Profile {
	out := old.Clone()

	decay := 1.0
	if old.LastUpdated != nil {
		elapsedDays := snap.CalculatedAt.Sub(*old.LastUpdated).Hours() / 24
		decay = DecayFactor(elapsedDays)
	}

	for topic, v := range out.Topics {
		out.Topics[topic] = v * decay
	}
	for topic, ts := range snap.Topics {
		out.Topics[topic] += ts.RawScore * snap.EngagementConfidence
	}

	out.EWMAFocus = ewma(out.EWMAFocus, snap.EngagementConfidence)
	out.EWMADepth = ewma(out.EWMADepth, 1-snap.DiversityEntropy)

	// Blend every intent seen on either side; absent values default to 0.
	for intent := range snap.IntentScores {
		if _, ok := out.IntentAggregate[intent]; !ok {
			out.IntentAggregate[intent] = 0
		}
	}
	for intent, v := range out.IntentAggregate {
		out.IntentAggregate[intent] = ewma(v, snap.IntentScores[intent])
	}

	if snap.EngagementConfidence >= seedConfidenceThreshold {
		out.SessionsSeen++
	}
	out.Confidence = math.Min(1, float64(out.SessionsSeen)/MaxSessions)
	t := snap.CalculatedAt
	out.LastUpdated = &t
	return out
}

func ewma(old, sample float64) float64 {
	return (1-ewmaAlpha)*old + ewmaAlpha*sample
}
