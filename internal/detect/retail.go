package detect

import (
	"math"
	"strings"

	"github.com/calloway/cadence/internal/model"
)

// retailScore estimates how likely a candidate is ordinary retail or dining
// rather than a true recurring bill. 0 looks like a subscription, 1 looks
// like a grocery run. Inputs are the merchant name and the candidate's
// statistical shape: retail merchants show scattered amounts and jittery
// intervals even when someone shops there every week.
func retailScore(cfg *Config, merchantName string, expectedAmount, amountVariance float64, cadence model.Cadence) float64 {
	score := 0.0

	lower := strings.ToLower(merchantName)
	for _, keyword := range cfg.RetailKeywords {
		if strings.Contains(lower, keyword) {
			score += 0.5
			break
		}
	}

	cv := 0.0
	if expectedAmount > 0 {
		cv = math.Sqrt(amountVariance) / expectedAmount
	}
	switch {
	case cv > 0.3:
		score += 0.3
	case cv > 0.15:
		score += 0.15
	}

	jitter := 0.0
	if cadence.MedianInterval > 0 {
		jitter = cadence.MAD / cadence.MedianInterval
	}
	switch {
	case jitter > 0.3:
		score += 0.3
	case jitter > 0.15:
		score += 0.15
	}

	return clamp01(score)
}

// retailOverride accepts a candidate regardless of its retail score when the
// periodic signal is unambiguous: enough occurrences, near-zero interval
// jitter, and near-zero amount variance. A merchant charging the identical
// amount on the same day every month is a bill no matter what its name says.
func retailOverride(cfg *Config, occurrences int, expectedAmount, amountVariance float64, cadence model.Cadence) bool {
	if occurrences < cfg.OverrideMinOccurrences {
		return false
	}
	if cadence.MedianInterval <= 0 || cadence.MAD/cadence.MedianInterval >= cfg.OverrideMaxJitter {
		return false
	}
	return amountVariance < cfg.OverrideMaxVarianceRatio*expectedAmount*expectedAmount
}
