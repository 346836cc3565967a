package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"installpro/internal/model"
	"installpro/pkg/apperror"
	"installpro/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	AccessTokenCookie = "access_token"
	actorKey          = "actor"
)

// ActorResolver loads the identity behind a token subject.
type ActorResolver interface {
	ResolveActor(ctx context.Context, id uuid.UUID) (model.Actor, error)
}

// SetTokenCookie stores the access token as an HttpOnly cookie.
// Cross-origin deployments need SameSite=None with Secure.
func SetTokenCookie(c *gin.Context, token string, maxAge int, secure bool) {
	sameSite := http.SameSiteLaxMode
	if secure {
		sameSite = http.SameSiteNoneMode
	}
	c.SetSameSite(sameSite)
	c.SetCookie(AccessTokenCookie, token, maxAge, "/", "", secure, true)
}

// ClearTokenCookie removes the access token cookie.
func ClearTokenCookie(c *gin.Context, secure bool) {
	SetTokenCookie(c, "", -1, secure)
}

// ParseToken validates an HS256 token and returns its subject.
func ParseToken(secret []byte, tokenString string) (uuid.UUID, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return secret, nil
	})
	if err != nil {
		return uuid.Nil, err
	}
	sub, err := token.Claims.GetSubject()
	if err != nil {
		return uuid.Nil, err
	}
	id, err := uuid.Parse(sub)
	if err != nil {
		return uuid.Nil, errors.New("token subject is not a user id")
	}
	return id, nil
}

// Authenticate resolves the caller from the access_token cookie, a Bearer
// header, or a ?token= query parameter (browsers cannot set headers on
// websocket upgrades), and stores the actor on the context.
func Authenticate(secret []byte, resolver ActorResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, err := extractToken(c)
		if err != nil {
			abort(c, apperror.Unauthorized(err.Error()))
			return
		}

		userID, err := ParseToken(secret, tokenString)
		if err != nil {
			abort(c, apperror.Unauthorized("Token inválido o expirado"))
			return
		}

		actor, err := resolver.ResolveActor(c.Request.Context(), userID)
		if err != nil {
			abort(c, err)
			return
		}

		SetActor(c, actor)
		c.Next()
	}
}

func extractToken(c *gin.Context) (string, error) {
	if token, err := c.Cookie(AccessTokenCookie); err == nil && token != "" {
		return token, nil
	}
	if header := c.GetHeader("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
			return "", errors.New("Formato de autorización inválido. Se espera 'Bearer <token>'")
		}
		return parts[1], nil
	}
	if token := c.Query("token"); token != "" {
		return token, nil
	}
	return "", errors.New("Falta la autorización")
}

// RequireRole rejects actors whose role is not listed. Must run after
// Authenticate.
func RequireRole(allowedRoles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := CurrentActor(c)
		if !ok {
			abort(c, apperror.Unauthorized("Usuario no autenticado"))
			return
		}
		for _, role := range allowedRoles {
			if actor.Role == role {
				c.Next()
				return
			}
		}
		abort(c, apperror.Forbidden(apperror.ReasonRoleNotAllowed, "Acceso denegado: permisos insuficientes"))
	}
}

// SetActor stores the authenticated actor on the request context.
func SetActor(c *gin.Context, actor model.Actor) {
	c.Set(actorKey, actor)
}

// CurrentActor returns the authenticated actor set by Authenticate.
func CurrentActor(c *gin.Context) (model.Actor, bool) {
	v, ok := c.Get(actorKey)
	if !ok {
		return model.Actor{}, false
	}
	actor, ok := v.(model.Actor)
	return actor, ok
}

func abort(c *gin.Context, err error) {
	status, body := response.FromError(err)
	c.AbortWithStatusJSON(status, body)
}
