package response

import (
	"context"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/varunkainth/airpollutionmap/internal/airquality"
	"github.com/varunkainth/airpollutionmap/internal/city"
	"github.com/varunkainth/airpollutionmap/internal/viewport"
	"github.com/varunkainth/airpollutionmap/pkg/geo"
)

// FromError maps a domain error to a problem response. Cancellations are
// logged at debug only; unexpected errors are logged and hidden.
func FromError(w http.ResponseWriter, r *http.Request, err error) {
	logger := zerolog.Ctx(r.Context())

	switch {
	case errors.Is(err, airquality.ErrCancelled), errors.Is(err, context.Canceled):
		logger.Debug().Err(err).Msg("request cancelled by client")
		ClientClosed(w, r)
	case errors.Is(err, city.ErrCityNotFound), errors.Is(err, viewport.ErrSessionNotFound):
		NotFound(w, r, err.Error())
	case isValidation(err):
		BadRequest(w, r, err.Error(), nil)
	case errors.Is(err, airquality.ErrProviderUnavailable):
		logger.Warn().Err(err).Msg("air quality provider unavailable")
		ServiceUnavailable(w, r, "air quality provider is unavailable, try again later")
	default:
		logger.Error().Err(err).Msg("unhandled error")
		InternalError(w, r, "an unexpected error occurred")
	}
}

func isValidation(err error) bool {
	for _, target := range []error{
		geo.ErrInvalidLatitude,
		geo.ErrInvalidLongitude,
		geo.ErrInvalidBox,
		city.ErrEmptyQuery,
		viewport.ErrCityRequired,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
