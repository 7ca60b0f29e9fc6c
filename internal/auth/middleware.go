package auth

import (
	"fmt"
	"strings"

	"bloodbank-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

const (
	CtxUserIDKey   = "user_id"
	CtxUserRoleKey = "user_role"
	CtxCentreIDKey = "centre_id"
)

func JWTMiddleware(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get(fiber.HeaderAuthorization)
		if authHeader == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "missing_authorization")
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid_authorization_format")
		}

		token, err := jwt.ParseWithClaims(parts[1], &JWTCustomClaims{}, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
			}
			return []byte(secret), nil
		})
		if err != nil || !token.Valid {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid_token")
		}

		claims, ok := token.Claims.(*JWTCustomClaims)
		if !ok || claims.Role == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid_token")
		}

		c.Locals(CtxUserIDKey, claims.UserID)
		c.Locals(CtxUserRoleKey, claims.Role)
		c.Locals(CtxCentreIDKey, claims.CentreID)

		return c.Next()
	}
}

func RequireRole(allowedRoles ...models.UserRole) fiber.Handler {
	return func(c *fiber.Ctx) error {
		role, ok := c.Locals(CtxUserRoleKey).(models.UserRole)
		if !ok {
			return fiber.NewError(fiber.StatusForbidden, "forbidden")
		}

		for _, r := range allowedRoles {
			if r == role {
				return c.Next()
			}
		}
		return fiber.NewError(fiber.StatusForbidden, "forbidden")
	}
}

// ActorFromCtx reads the caller stored by JWTMiddleware. Centre-bound roles
// without a home centre are rejected so they can never fall through to an
// unscoped query.
func ActorFromCtx(c *fiber.Ctx) (Actor, error) {
	actor, ok := ActorFromLocals(c)
	if !ok {
		return Actor{}, fiber.NewError(fiber.StatusForbidden, "forbidden")
	}
	if actor.Role.IsCentreBound() && actor.CentreID == nil {
		return Actor{}, fiber.NewError(fiber.StatusForbidden, "centre_missing")
	}
	return actor, nil
}

// ActorFromLocals is ActorFromCtx without the home centre check, for callers
// that apply Actor.CanAccessCentre themselves.
func ActorFromLocals(c *fiber.Ctx) (Actor, bool) {
	role, ok := c.Locals(CtxUserRoleKey).(models.UserRole)
	if !ok {
		return Actor{}, false
	}
	userID, _ := c.Locals(CtxUserIDKey).(uint)

	var centreID *string
	if cPtr, ok := c.Locals(CtxCentreIDKey).(*string); ok && cPtr != nil && *cPtr != "" {
		centreID = cPtr
	}
	return Actor{UserID: userID, Role: role, CentreID: centreID}, true
}
