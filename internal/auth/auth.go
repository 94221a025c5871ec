package auth

import (
	"errors"
	"net/http"

	"github.com/golang-jwt/jwt/v5"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
)

const (
	RoleStudent = "student"
	RoleSeller  = "seller"
)

const contextKey = "user"

// Claims is the identity issued by the login service.
type Claims struct {
	ID   int64  `json:"id"`
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Middleware validates the bearer token and stores its claims on the context.
func Middleware(secret string) echo.MiddlewareFunc {
	return echojwt.WithConfig(echojwt.Config{
		SigningKey: []byte(secret),
		ContextKey: contextKey,
		NewClaimsFunc: func(c echo.Context) jwt.Claims {
			return new(Claims)
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return c.JSON(http.StatusUnauthorized, map[string]string{
				"error": "missing or invalid token",
				"kind":  "Unauthorized",
			})
		},
	})
}

// RequireRole rejects authenticated users whose role differs from role.
func RequireRole(role string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			claims, err := ClaimsFrom(c)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": err.Error(), "kind": "Unauthorized"})
			}
			if claims.Role != role {
				return c.JSON(http.StatusForbidden, map[string]string{
					"error": "this action requires the " + role + " role",
					"kind":  "Forbidden",
				})
			}
			return next(c)
		}
	}
}

var errNoClaims = errors.New("no authenticated user")

func ClaimsFrom(c echo.Context) (*Claims, error) {
	token, ok := c.Get(contextKey).(*jwt.Token)
	if !ok {
		return nil, errNoClaims
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || claims.ID == 0 {
		return nil, errNoClaims
	}
	return claims, nil
}

// UserID returns the id of the authenticated user, or 0.
func UserID(c echo.Context) int64 {
	claims, err := ClaimsFrom(c)
	if err != nil {
		return 0
	}
	return claims.ID
}
