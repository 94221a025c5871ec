package api

import (
	"errors"
	"net/http"
	"os"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"campus-marketplace/internal/service"
)

var logger = zerolog.New(os.Stdout).With().Timestamp().Logger()

type errorKind struct {
	target error
	kind   string
	status int
}

var errorKinds = []errorKind{
	{service.ErrNotFound, "NotFound", http.StatusNotFound},
	{service.ErrConflict, "Conflict", http.StatusConflict},
	{service.ErrInactive, "Inactive", http.StatusBadRequest},
	{service.ErrInsufficientStock, "InsufficientStock", http.StatusBadRequest},
	{service.ErrInvalidQuantity, "InvalidQuantity", http.StatusBadRequest},
	{service.ErrInvalidStatus, "InvalidStatus", http.StatusBadRequest},
	{service.ErrInvalidTransition, "InvalidTransition", http.StatusBadRequest},
	{service.ErrInvalidProduct, "InvalidProduct", http.StatusBadRequest},
	{service.ErrEmptyCart, "EmptyCart", http.StatusBadRequest},
	{service.ErrNoValidSelection, "NoValidSelection", http.StatusBadRequest},
	{service.ErrNotCancelable, "NotCancelable", http.StatusBadRequest},
}

// respondError writes err as {"error", "kind"}. Errors outside the domain
// are logged and hidden behind a generic message.
func respondError(c echo.Context, err error) error {
	for _, k := range errorKinds {
		if errors.Is(err, k.target) {
			return c.JSON(k.status, map[string]string{"error": err.Error(), "kind": k.kind})
		}
	}

	logger.Error().Err(err).Msgf("Unhandled error on %s %s", c.Request().Method, c.Path())
	return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal server error", "kind": "Internal"})
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, map[string]string{"error": msg, "kind": "BadRequest"})
}
