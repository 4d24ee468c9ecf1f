package webrisk

import (
	"context"

	"phishguard/internal/models"
	"phishguard/pkg/webrisk/types"
)

// Decide turns an oracle response into a verdict. Any score at or above the
// threshold is a threat. Missing responses and empty score lists are inconclusive.
func Decide(resp *types.EvaluateURIResponse, threshold types.ConfidenceLevel) models.Verdict {
	if resp == nil || len(resp.Scores) == 0 {
		return models.VerdictInconclusive
	}
	for _, score := range resp.Scores {
		if score.ConfidenceLevel == "" {
			continue
		}
		if score.ConfidenceLevel.AtLeast(threshold) {
			return models.VerdictThreatFound
		}
	}
	return models.VerdictSafe
}

// Evaluator applies a confidence threshold to oracle responses
type Evaluator struct {
	client    Client
	threshold types.ConfidenceLevel
}

// NewEvaluator wraps client with the given threshold
func NewEvaluator(client Client, threshold types.ConfidenceLevel) *Evaluator {
	return &Evaluator{client: client, threshold: threshold}
}

// Check evaluates one URL. Oracle errors are returned unchanged so callers can
// tell transient failures from permanent ones.
func (e *Evaluator) Check(ctx context.Context, url string) (models.Verdict, error) {
	resp, err := e.client.EvaluateURI(ctx, url)
	if err != nil {
		return models.VerdictInconclusive, err
	}
	return Decide(resp, e.threshold), nil
}
