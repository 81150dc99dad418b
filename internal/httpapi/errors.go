package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v5"

	"github.com/patchbay-io/patchbay/internal/auth"
	"github.com/patchbay-io/patchbay/internal/connector"
	"github.com/patchbay-io/patchbay/internal/registry"
	"github.com/patchbay-io/patchbay/internal/schema"
	"github.com/patchbay-io/patchbay/internal/store"
	"github.com/patchbay-io/patchbay/internal/vault"
)

// validationHTTPError renders a schema.ValidationError as a 400 response.
// Echo v5's HTTPError message is a plain string, so the structured body is
// produced via json.Marshaler, which the default error handler serializes
// as-is for errors that also implement echo.HTTPStatusCoder.
type validationHTTPError struct {
	verr *schema.ValidationError
}

func (e *validationHTTPError) Error() string   { return e.verr.Error() }
func (e *validationHTTPError) StatusCode() int { return http.StatusBadRequest }

func (e *validationHTTPError) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{
		"error":   "validation failed",
		"subject": e.verr.Subject,
		"fields":  e.verr.Fields,
	})
}

// mapError translates the typed domain errors into HTTP responses.
// Validation failures carry the per-field violations in the body so clients
// can render them.
func mapError(err error) error {
	if err == nil {
		return echo.NewHTTPError(http.StatusNotFound, "connector not found")
	}

	var verr *schema.ValidationError
	if errors.As(err, &verr) {
		return &validationHTTPError{verr: verr}
	}

	var uierr *registry.UnknownIntegrationError
	if errors.As(err, &uierr) {
		return echo.NewHTTPError(http.StatusNotFound, uierr.Error())
	}
	var nferr *store.NotFoundError
	if errors.As(err, &nferr) {
		return echo.NewHTTPError(http.StatusNotFound, nferr.Error())
	}
	var uaerr *connector.UnknownActionError
	if errors.As(err, &uaerr) {
		return echo.NewHTTPError(http.StatusNotFound, uaerr.Error())
	}
	var ncerr *connector.NotConnectedError
	if errors.As(err, &ncerr) {
		return echo.NewHTTPError(http.StatusConflict, ncerr.Error())
	}
	var cerr *connector.ConnectionError
	if errors.As(err, &cerr) {
		return echo.NewHTTPError(http.StatusBadGateway, cerr.Error())
	}
	var xerr *connector.ExecutionError
	if errors.As(err, &xerr) {
		return echo.NewHTTPError(http.StatusBadGateway, xerr.Error())
	}
	var derr *vault.DecryptionError
	if errors.As(err, &derr) {
		// Deliberately vague: the details would leak key material context.
		return echo.NewHTTPError(http.StatusInternalServerError, "stored credentials could not be decrypted")
	}

	return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
}

// BearerAuth verifies the Authorization bearer token against the configured
// argon2id hash.
func BearerAuth(tokenHash string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c *echo.Context) error {
			header := c.Request().Header.Get(echo.HeaderAuthorization)
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing bearer token")
			}
			match, err := auth.CompareToken(token, tokenHash)
			if err != nil || !match {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid bearer token")
			}
			return next(c)
		}
	}
}
