package middleware

import (
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/clinicflow/rdv-api/internal/core/domain"
	"github.com/clinicflow/rdv-api/internal/core/ports"
)

// Context keys set by Auth for the request logger.
const (
	ContextUserID = "user_id"
	ContextRole   = "role"
)

// Auth verifies the bearer token and attaches the caller's identity to the
// request context.
func Auth(tokens ports.TokenService) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw, ok := bearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
			if !ok {
				return domain.ErrMissingToken
			}

			id, err := tokens.Verify(raw)
			if err != nil {
				return domain.ErrInvalidToken
			}

			req := c.Request()
			c.SetRequest(req.WithContext(domain.WithIdentity(req.Context(), id)))
			c.Set(ContextUserID, id.SubjectID)
			c.Set(ContextRole, id.Role.String())

			return next(c)
		}
	}
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
