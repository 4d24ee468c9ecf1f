package webrisk

import (
	"context"
	"errors"
	"testing"

	"phishguard/internal/models"
	"phishguard/pkg/webrisk/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockClient struct {
	mock.Mock
}

func (m *mockClient) EvaluateURI(ctx context.Context, uri string) (*types.EvaluateURIResponse, error) {
	args := m.Called(ctx, uri)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.EvaluateURIResponse), args.Error(1)
}

func scores(levels ...types.ConfidenceLevel) *types.EvaluateURIResponse {
	resp := &types.EvaluateURIResponse{}
	for _, level := range levels {
		resp.Scores = append(resp.Scores, types.Score{ThreatType: types.ThreatTypeMalware, ConfidenceLevel: level})
	}
	return resp
}

func TestDecide(t *testing.T) {
	tests := []struct {
		name string
		resp *types.EvaluateURIResponse
		want models.Verdict
	}{
		{"nil response", nil, models.VerdictInconclusive},
		{"no scores", &types.EvaluateURIResponse{}, models.VerdictInconclusive},
		{"below threshold", scores(types.ConfidenceSafe, types.ConfidenceMedium), models.VerdictSafe},
		{"at threshold", scores(types.ConfidenceLow, types.ConfidenceHigh), models.VerdictThreatFound},
		{"above threshold", scores(types.ConfidenceExtremelyHigh), models.VerdictThreatFound},
		{"missing levels ignored", scores("", types.ConfidenceLow), models.VerdictSafe},
		{"only missing levels", scores(""), models.VerdictSafe},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Decide(tt.resp, types.ConfidenceHigh))
		})
	}
}

func TestEvaluator_Check(t *testing.T) {
	ctx := context.Background()
	client := &mockClient{}
	client.On("EvaluateURI", ctx, "http://bad.example").Return(scores(types.ConfidenceVeryHigh), nil)
	client.On("EvaluateURI", ctx, "http://down.example").Return(nil, errors.New("boom"))

	evaluator := NewEvaluator(client, types.ConfidenceHigh)

	verdict, err := evaluator.Check(ctx, "http://bad.example")
	require.NoError(t, err)
	assert.Equal(t, models.VerdictThreatFound, verdict)

	verdict, err = evaluator.Check(ctx, "http://down.example")
	assert.Error(t, err)
	assert.Equal(t, models.VerdictInconclusive, verdict)
	client.AssertExpectations(t)
}
