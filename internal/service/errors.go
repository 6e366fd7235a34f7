package service

import (
	"errors"
	"strings"

	"github.com/Jusabaoth/NutriScan/internal/extract"
	"github.com/Jusabaoth/NutriScan/internal/gemini"
	"github.com/Jusabaoth/NutriScan/internal/normalize"
	"github.com/Jusabaoth/NutriScan/internal/targets"
)

// ErrCancelled is the terminal result of a user-initiated cancellation.
// It is a state, not a failure: nothing retries it and no fallback may
// run once it is observed.
var ErrCancelled = errors.New("generation cancelled by user")

// ErrGenerationInProgress is returned when a generate request arrives
// while another is already running. Duplicates are dropped, not queued.
var ErrGenerationInProgress = errors.New("a generation is already in progress")

// retryable reports whether one more attempt at the same unit of work is
// worth making. Recoverable transport failures and malformed model output
// are; precondition failures, cancellation, and permanent transport
// failures are not.
func retryable(err error) bool {
	if errors.Is(err, ErrCancelled) || errors.Is(err, targets.ErrIncompleteProfile) {
		return false
	}

	var transportErr *gemini.TransportError
	if errors.As(err, &transportErr) {
		return transportErr.Retryable
	}

	var malformed *extract.MalformedResponseError
	var dialect *normalize.ErrUnknownDialect
	var envelope *gemini.EnvelopeError
	return errors.As(err, &malformed) || errors.As(err, &dialect) || errors.As(err, &envelope)
}

var overloadVocabulary = []string{"429", "503", "rate", "exhausted", "overload"}

// IsOverload classifies an error message against the known rate-limit and
// overload vocabulary, for distinct "try again later" user messaging.
func IsOverload(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, word := range overloadVocabulary {
		if strings.Contains(msg, word) {
			return true
		}
	}
	return false
}
