package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"hifz_attendance_notifier/internal/app"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const actorContextKey = "actor"

var (
	errMissingToken = errors.New("missing bearer token")
	errNoSecret     = errors.New("no signing secret configured")
)

// StaffClaims are the JWT claims issued to staff by the portal's auth service.
// The subject is the staff user id.
type StaffClaims struct {
	Name string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// requireStaff authenticates the request and stores the Actor on the context.
func requireStaff(secret []byte) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			actor, err := parseActor(c.Request().Header.Get(echo.HeaderAuthorization), secret)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid or missing credentials").SetInternal(err)
			}
			c.Set(actorContextKey, actor)
			return next(c)
		}
	}
}

func parseActor(header string, secret []byte) (*app.Actor, error) {
	if len(secret) == 0 {
		return nil, errNoSecret
	}
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || strings.TrimSpace(raw) == "" {
		return nil, errMissingToken
	}

	claims := &StaffClaims{}
	token, err := jwt.ParseWithClaims(strings.TrimSpace(raw), claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("token is not valid")
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("token subject is not a staff id: %w", err)
	}
	return &app.Actor{UserID: userID, Name: claims.Name}, nil
}

// actorFrom returns the Actor placed on the context by requireStaff.
func actorFrom(c echo.Context) *app.Actor {
	actor, _ := c.Get(actorContextKey).(*app.Actor)
	return actor
}

// IssueToken signs a staff token. Used by tooling and tests.
func IssueToken(secret []byte, staffID uuid.UUID, name string, claims jwt.RegisteredClaims) (string, error) {
	claims.Subject = staffID.String()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, StaffClaims{Name: name, RegisteredClaims: claims})
	return token.SignedString(secret)
}
