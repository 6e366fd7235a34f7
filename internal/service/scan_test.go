package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Jusabaoth/NutriScan/internal/extract"
	"github.com/Jusabaoth/NutriScan/internal/gemini"
	"github.com/Jusabaoth/NutriScan/pkg/model"
)

const validScanJSON = "```json\n" + `{
	"productName": "Biskuit Gandum",
	"nutritionFacts": {
		"servingSize": "30 g",
		"calories": 140,
		"totalFat": 5,
		"saturatedFat": 2,
		"sodium": 120,
		"totalCarbohydrate": 21,
		"sugars": 7,
		"protein": 2
	},
	"ingredients": ["tepung gandum", "gula", "minyak nabati"],
	"riskAssessment": {"level": "medium", "factors": ["gula tambahan"], "score": 45},
	"recommendations": [{"category": "limit", "message": "Batasi 2 keping", "reason": "Gula tambahan"}],
	"bpomCompliance": {"compliant": true, "violations": [], "warnings": []},
	"whoCompliance": {"compliant": true, "violations": [], "warnings": []},
	"analysisText": "Biskuit dengan kandungan gula sedang."
}` + "\n```"

// replayGateway returns scripted raw responses in order.
type replayGateway struct {
	mu        sync.Mutex
	responses []string
	errs      []error
	lastReq   gemini.Request
	calls     int
}

func (g *replayGateway) Send(_ context.Context, req gemini.Request) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	i := g.calls
	g.calls++
	g.lastReq = req
	if i < len(g.errs) && g.errs[i] != nil {
		return "", g.errs[i]
	}
	return g.responses[i], nil
}

func images(n int) []gemini.InlineData {
	out := make([]gemini.InlineData, n)
	for i := range out {
		out[i] = gemini.InlineData{MimeType: "image/jpeg", Data: "aGVsbG8="}
	}
	return out
}

func TestAnalyze_Success(t *testing.T) {
	gateway := &replayGateway{responses: []string{validScanJSON}}
	s := NewScanner(gateway, zap.NewNop())

	result, err := s.Analyze(context.Background(), images(2), model.HealthProfile{Age: 30})
	require.NoError(t, err)

	assert.NotEmpty(t, result.ID)
	assert.False(t, result.Timestamp.IsZero())
	assert.Equal(t, "Biskuit Gandum", result.ProductName)
	assert.Equal(t, 140.0, result.NutritionFacts.Calories)
	assert.Equal(t, model.RiskMedium, result.RiskAssessment.Level)

	// Prompt text first, then one part per image.
	require.Len(t, gateway.lastReq.Contents[0].Parts, 3)
}

func TestAnalyze_RetriesOnceThenSucceeds(t *testing.T) {
	gateway := &replayGateway{
		responses: []string{"", validScanJSON},
		errs:      []error{&gemini.TransportError{StatusCode: 503, Retryable: true}, nil},
	}
	s := NewScanner(gateway, zap.NewNop())
	s.retry.sleep = func(ctx context.Context, d time.Duration) error { return nil }

	result, err := s.Analyze(context.Background(), images(1), model.HealthProfile{})
	require.NoError(t, err)
	assert.Equal(t, 2, gateway.calls)
	assert.NotNil(t, result)
}

func TestAnalyze_NoFallbackOnPermanentFailure(t *testing.T) {
	gateway := &replayGateway{
		responses: []string{"garbage with no braces at all", "still garbage"},
	}
	s := NewScanner(gateway, zap.NewNop())
	s.retry.sleep = func(ctx context.Context, d time.Duration) error { return nil }

	result, err := s.Analyze(context.Background(), images(1), model.HealthProfile{})
	assert.Nil(t, result)

	var malformed *extract.MalformedResponseError
	assert.ErrorAs(t, err, &malformed)
	assert.Equal(t, 2, gateway.calls)
}

func TestAnalyze_CapsImagesAtFive(t *testing.T) {
	gateway := &replayGateway{responses: []string{validScanJSON}}
	s := NewScanner(gateway, zap.NewNop())

	_, err := s.Analyze(context.Background(), images(8), model.HealthProfile{})
	require.NoError(t, err)
	assert.Len(t, gateway.lastReq.Contents[0].Parts, 1+maxScanImages)
}
