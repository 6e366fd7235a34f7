package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Jusabaoth/NutriScan/internal/extract"
	"github.com/Jusabaoth/NutriScan/internal/gemini"
	"github.com/Jusabaoth/NutriScan/internal/normalize"
	"github.com/Jusabaoth/NutriScan/internal/prompt"
	"github.com/Jusabaoth/NutriScan/pkg/model"
)

// Scanner runs the nutrition-label analysis flow: one model call over all
// supplied images, one extraction. There is no fallback for scans; a
// synthetic scan result would mislead, so any failure surfaces directly.
type Scanner struct {
	gateway Gateway
	retry   RetryPolicy
	logger  *zap.Logger
}

func NewScanner(gateway Gateway, logger *zap.Logger) *Scanner {
	return &Scanner{
		gateway: gateway,
		retry:   DefaultRetryPolicy(),
		logger:  logger,
	}
}

// maxScanImages caps how many label photos one analysis accepts.
const maxScanImages = 5

// Analyze sends the images through the model and returns the assembled
// result with a fresh id and capture timestamp.
func (s *Scanner) Analyze(ctx context.Context, images []gemini.InlineData, profile model.HealthProfile) (*model.ScanResult, error) {
	if len(images) > maxScanImages {
		images = images[:maxScanImages]
	}

	text, cfg := prompt.Scan(profile)
	req := gemini.NewVisionRequest(text, images, cfg)

	var result *model.ScanResult
	err := s.retry.Do(ctx, func(ctx context.Context) error {
		raw, err := s.gateway.Send(ctx, req)
		if err != nil {
			return err
		}

		candidate, err := extract.Object(raw)
		if err != nil {
			return err
		}

		normalized, err := normalize.Scan(candidate)
		if err != nil {
			return err
		}
		result = normalized
		return nil
	})
	if err != nil {
		s.logger.Warn("scan analysis failed", zap.Error(err))
		return nil, err
	}

	result.ID = uuid.NewString()
	result.Timestamp = time.Now()
	return result, nil
}
