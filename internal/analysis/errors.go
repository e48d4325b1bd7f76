package analysis

import (
	"github.com/seenimoa/tradelens/pkg/apperr"
)

// InvalidResponseMessage is shown when the engine's answer fails validation.
const InvalidResponseMessage = "invalid AI response format"

var (
	// ErrAnalysisInFlight is returned when Run is called while another
	// analysis is still running.
	ErrAnalysisInFlight = apperr.New(apperr.KindConflict, "An analysis is already running.", nil)

	// ErrNoProvider is returned when no reasoning engine is configured.
	ErrNoProvider = apperr.New(apperr.KindAIUnavailable, "The AI engine is not initialised. Add an API key and try again.", nil)

	// ErrNoSymbol is returned when Run is called without a symbol.
	ErrNoSymbol = apperr.New(apperr.KindValidation, "Select a symbol before running an analysis.", nil)
)

func invalidResponse(err error) error {
	return apperr.New(apperr.KindValidation, InvalidResponseMessage, err)
}
