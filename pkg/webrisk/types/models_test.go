package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfidenceLevel_Rank(t *testing.T) {
	assert.Equal(t, 0, ConfidenceUnspecified.Rank())
	assert.Equal(t, 4, ConfidenceHigh.Rank())
	assert.Equal(t, 7, ConfidenceExtremelyHigh.Rank())
	assert.Equal(t, -1, ConfidenceLevel("BOGUS").Rank())
}

func TestConfidenceLevel_AtLeast(t *testing.T) {
	tests := []struct {
		level     ConfidenceLevel
		threshold ConfidenceLevel
		want      bool
	}{
		{ConfidenceHigh, ConfidenceHigh, true},
		{ConfidenceVeryHigh, ConfidenceHigh, true},
		{ConfidenceMedium, ConfidenceHigh, false},
		{ConfidenceSafe, ConfidenceHigh, false},
		{ConfidenceLevel(""), ConfidenceUnspecified, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.level)+"_vs_"+string(tt.threshold), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.level.AtLeast(tt.threshold))
		})
	}
}

func TestParseConfidenceLevel(t *testing.T) {
	level, err := ParseConfidenceLevel(" very_high ")
	require.NoError(t, err)
	assert.Equal(t, ConfidenceVeryHigh, level)

	_, err = ParseConfidenceLevel("extreme")
	assert.Error(t, err)
}

func TestEvaluateURIResponse_Decode(t *testing.T) {
	body := `{"scores":[{"threatType":"MALWARE","confidenceLevel":"HIGHER"},{"threatType":"SOCIAL_ENGINEERING"}]}`

	var resp EvaluateURIResponse
	require.NoError(t, json.Unmarshal([]byte(body), &resp))
	require.Len(t, resp.Scores, 2)
	assert.Equal(t, ThreatTypeMalware, resp.Scores[0].ThreatType)
	assert.Equal(t, ConfidenceHigher, resp.Scores[0].ConfidenceLevel)
	assert.Empty(t, resp.Scores[1].ConfidenceLevel)
}
