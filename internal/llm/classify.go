package llm

import (
	"github.com/seenimoa/tradelens/pkg/apperr"
	"github.com/seenimoa/tradelens/pkg/utils"
)

// maxForwardedError bounds the provider text passed through to the user.
const maxForwardedError = 300

// Classify maps a provider error onto the application error taxonomy.
// Errors that fit no known class become KindUnknown carrying the original
// error text, trimmed; fallback is used only when that text is empty.
func Classify(err error, fallback string) error {
	switch {
	case err == nil:
		return nil
	case IsRateLimit(err):
		return apperr.New(apperr.KindTransient, "The AI service rate limit was reached. Please wait a minute and try again.", err)
	case IsTransient(err):
		return apperr.New(apperr.KindTransient, "The AI service is unreachable. Please try again.", err)
	case IsConfiguration(err):
		return apperr.New(apperr.KindConfiguration, "The AI service is not configured. Check the API key.", err)
	}
	msg := utils.Truncate(err.Error(), maxForwardedError)
	if msg == "" {
		msg = fallback
	}
	return apperr.New(apperr.KindUnknown, msg, err)
}
