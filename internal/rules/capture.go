package rules

import "fmt"

// CaptureResult is one capture attempt's settlement.
type CaptureResult struct {
	Success    bool `json:"success"`
	ScoreDelta int  `json:"score_delta"`
}

// CaptureChance returns the effective capture chance, always clamped to
// [0.05, 1.0]: strong targets stay barely catchable, weak ones never
// exceed certainty.
func CaptureChance(targetPower, actorPower float64, risk Risk) (float64, error) {
	if err := checkPower("target power", targetPower); err != nil {
		return 0, err
	}
	if err := checkPower("actor power", actorPower); err != nil {
		return 0, err
	}
	mult, ok := riskCaptureMultiplier[risk]
	if !ok {
		return 0, fmt.Errorf("rules: unknown risk level %q", risk)
	}
	base := 0.45 - 0.02*targetPower + 0.01*actorPower
	return clamp(base*mult, 0.05, 1.0), nil
}

// ComputeCapture settles one capture attempt with a single seeded draw
// (a high roll closes the capture).
func ComputeCapture(targetPower, actorPower float64, risk Risk, seed int64) (CaptureResult, error) {
	chance, err := CaptureChance(targetPower, actorPower, risk)
	if err != nil {
		return CaptureResult{}, err
	}

	seq := NewSequence(seed)
	roll := seq.Next()
	success := roll >= 1.0-chance

	res := CaptureResult{Success: success}
	if success {
		res.ScoreDelta = captureScoreBonus
	}
	return res, nil
}
