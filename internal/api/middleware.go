package api

import (
	"slices"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

// Claims scope a token to a set of queues. An empty list grants all.
type Claims struct {
	Queues []string `json:"queues,omitempty"`
	jwt.RegisteredClaims
}

func (c *Claims) allows(queue string) bool {
	return len(c.Queues) == 0 || slices.Contains(c.Queues, queue)
}

// Auth accepts the static internal token or an HS256 token signed with
// secret. With neither configured every request passes.
func Auth(secret, internalToken string) fiber.Handler {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	keyFunc := func(*jwt.Token) (interface{}, error) { return []byte(secret), nil }

	return func(c *fiber.Ctx) error {
		if secret == "" && internalToken == "" {
			return c.Next()
		}

		raw, ok := strings.CutPrefix(c.Get(fiber.HeaderAuthorization), "Bearer ")
		if !ok || raw == "" {
			return c.Status(401).JSON(ErrorResponse{Error: "bearer token required"})
		}
		if internalToken != "" && raw == internalToken {
			return c.Next()
		}
		if secret == "" {
			return c.Status(401).JSON(ErrorResponse{Error: "invalid token"})
		}

		claims := &Claims{}
		if _, err := parser.ParseWithClaims(raw, claims, keyFunc); err != nil {
			return c.Status(401).JSON(ErrorResponse{Error: "invalid or expired token"})
		}
		c.Locals("claims", claims)
		return c.Next()
	}
}

// allowQueue rejects JWT callers whose token does not cover the queue.
func allowQueue(c *fiber.Ctx, queue string) bool {
	claims, ok := c.Locals("claims").(*Claims)
	return !ok || claims.allows(queue)
}

// IssueToken signs a token for subject valid for ttl.
func IssueToken(secret, subject string, queues []string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		Queues: queues,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
