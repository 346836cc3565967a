package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"installpro/internal/model"
	"installpro/pkg/apperror"
	"installpro/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var secret = []byte("test-secret")

type staticResolver map[uuid.UUID]model.Actor

func (r staticResolver) ResolveActor(_ context.Context, id uuid.UUID) (model.Actor, error) {
	if a, ok := r[id]; ok {
		return a, nil
	}
	return model.Actor{}, apperror.Unauthorized("Usuario no encontrado")
}

func sign(t *testing.T, key []byte, sub string, exp time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": sub, "exp": exp.Unix()})
	s, err := token.SignedString(key)
	require.NoError(t, err)
	return s
}

func newRouter(resolver ActorResolver, roles ...string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Recovery())
	handlers := []gin.HandlerFunc{Authenticate(secret, resolver)}
	if len(roles) > 0 {
		handlers = append(handlers, RequireRole(roles...))
	}
	handlers = append(handlers, func(c *gin.Context) {
		actor, _ := CurrentActor(c)
		c.JSON(http.StatusOK, response.Success(http.StatusOK, actor))
	})
	r.GET("/me", handlers...)
	r.GET("/boom", func(*gin.Context) { panic("boom") })
	return r
}

func decode(t *testing.T, w *httptest.ResponseRecorder) response.Response {
	t.Helper()
	var body response.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestAuthenticateTokenSources(t *testing.T) {
	vendor := model.Actor{ID: uuid.New(), Name: "Valeria", Role: model.RoleVendor}
	router := newRouter(staticResolver{vendor.ID: vendor})
	token := sign(t, secret, vendor.ID.String(), time.Now().Add(time.Hour))

	cases := map[string]func(r *http.Request){
		"bearer": func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) },
		"cookie": func(r *http.Request) { r.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: token}) },
		"query":  func(r *http.Request) { r.URL.RawQuery = "token=" + token },
	}
	for name, apply := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			apply(req)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			require.Equal(t, http.StatusOK, w.Code, w.Body.String())
			data := decode(t, w).Data.(map[string]interface{})
			assert.Equal(t, vendor.ID.String(), data["id"])
			assert.Equal(t, model.RoleVendor, data["role"])
		})
	}
}

func TestAuthenticateRejects(t *testing.T) {
	known := uuid.New()
	router := newRouter(staticResolver{known: {ID: known, Name: "Ana", Role: model.RoleAdmin}})

	cases := map[string]string{
		"missing":      "",
		"bad format":   "Token abc",
		"wrong key":    "Bearer " + sign(t, []byte("other"), known.String(), time.Now().Add(time.Hour)),
		"expired":      "Bearer " + sign(t, secret, known.String(), time.Now().Add(-time.Hour)),
		"bad subject":  "Bearer " + sign(t, secret, "not-a-uuid", time.Now().Add(time.Hour)),
		"unknown user": "Bearer " + sign(t, secret, uuid.NewString(), time.Now().Add(time.Hour)),
	}
	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Equal(t, string(apperror.CodeUnauthorized), decode(t, w).Code)
		})
	}
}

func TestRequireRole(t *testing.T) {
	admin := model.Actor{ID: uuid.New(), Name: "Ana", Role: model.RoleAdmin}
	vendor := model.Actor{ID: uuid.New(), Name: "Valeria", Role: model.RoleVendor}
	router := newRouter(staticResolver{admin.ID: admin, vendor.ID: vendor}, model.RoleAdmin, model.RoleSuperAdmin)

	for _, tc := range []struct {
		actor model.Actor
		want  int
	}{{admin, http.StatusOK}, {vendor, http.StatusForbidden}} {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("Authorization", "Bearer "+sign(t, secret, tc.actor.ID.String(), time.Now().Add(time.Hour)))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, tc.want, w.Code, tc.actor.Role)
		if tc.want == http.StatusForbidden {
			assert.Equal(t, string(apperror.ReasonRoleNotAllowed), decode(t, w).Reason)
		}
	}
}

func TestRecovery(t *testing.T) {
	router := newRouter(staticResolver{})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID(), RequestLogger())
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Header().Get(RequestIDHeader))
}
