package middleware

import (
	"fmt"
	"os"
	"strings"

	"visitor-gate/models/user"
	"visitor-gate/services/visitflow"
	"visitor-gate/types"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

// RoleAny lets a route through with any valid token.
const RoleAny = "any"

// VerifyJWT verifies an HMAC-signed token and returns its claims.
func VerifyJWT(tokenString string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(os.Getenv("JWT_SECRET")), nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse JWT: %w", err)
	}

	if claims, ok := token.Claims.(jwt.MapClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, fmt.Errorf("invalid JWT token")
}

func hasRole(claims jwt.MapClaims, requiredRoles []string) bool {
	role, _ := claims["role"].(string)

	for _, required := range requiredRoles {
		if required == RoleAny {
			return true
		}
		if role == required {
			return true
		}
	}
	return false
}

// IsAuthenticated checks for a valid JWT token carrying one of the required
// roles and attaches the resolved actor to the request context.
func IsAuthenticated(requiredRoles []string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		var token string

		if authHeader != "" {
			tokenParts := strings.Split(authHeader, " ")
			if len(tokenParts) != 2 || tokenParts[0] != "Bearer" {
				return c.Status(fiber.StatusUnauthorized).JSON(types.ApiResponse{
					Status:  fiber.StatusUnauthorized,
					Message: "Invalid authorization header format",
				})
			}
			token = tokenParts[1]
		} else {
			// Try to get token from cookie as fallback
			token = c.Cookies("access")
			if token == "" {
				return c.Status(fiber.StatusUnauthorized).JSON(types.ApiResponse{
					Status:  fiber.StatusUnauthorized,
					Message: "Authorization token missing",
				})
			}
		}

		claims, err := VerifyJWT(token)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(types.ApiResponse{
				Status:  fiber.StatusUnauthorized,
				Message: "Session expired. Login again.",
			})
		}

		if !hasRole(claims, requiredRoles) {
			return c.Status(fiber.StatusForbidden).JSON(types.ApiResponse{
				Status:  fiber.StatusForbidden,
				Message: "Insufficient permissions",
			})
		}

		userID, _ := claims["sub"].(string)
		role, _ := claims["role"].(string)
		if userID == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(types.ApiResponse{
				Status:  fiber.StatusUnauthorized,
				Message: "Session expired. Login again.",
			})
		}

		c.Locals("user", claims)
		c.Locals("actor", visitflow.Actor{ID: userID, Role: user.Role(role)})

		return c.Next()
	}
}

// RequireRoles creates a middleware gated on the listed roles.
func RequireRoles(roles ...user.Role) fiber.Handler {
	required := make([]string, len(roles))
	for i, r := range roles {
		required[i] = r.String()
	}
	return IsAuthenticated(required)
}

// RequireAuthentication only requires a valid token, no specific role.
func RequireAuthentication() fiber.Handler {
	return IsAuthenticated([]string{RoleAny})
}

// ActorFromContext returns the resolved actor attached by IsAuthenticated.
func ActorFromContext(c *fiber.Ctx) (visitflow.Actor, bool) {
	actor, ok := c.Locals("actor").(visitflow.Actor)
	return actor, ok
}
