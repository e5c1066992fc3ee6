package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func tokenRouter(token string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(TokenAuth(TokenAuthConfig{Token: token}))
	r.GET("/v1/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"authenticated": c.GetBool("authenticated")})
	})
	return r
}

func TestTokenAuth(t *testing.T) {
	cases := []struct {
		name   string
		token  string
		url    string
		header string
		status int
	}{
		{name: "disabled", url: "/v1/status", status: http.StatusOK},
		{name: "missing", token: "s3cret", url: "/v1/status", status: http.StatusUnauthorized},
		{name: "wrong bearer", token: "s3cret", url: "/v1/status", header: "Bearer nope", status: http.StatusUnauthorized},
		{name: "prefix of token", token: "s3cret", url: "/v1/status", header: "Bearer s3cre", status: http.StatusUnauthorized},
		{name: "no bearer scheme", token: "s3cret", url: "/v1/status", header: "s3cret", status: http.StatusUnauthorized},
		{name: "bearer", token: "s3cret", url: "/v1/status", header: "Bearer s3cret", status: http.StatusOK},
		{name: "query", token: "s3cret", url: "/v1/status?token=s3cret", status: http.StatusOK},
		{name: "bad header beats good query", token: "s3cret", url: "/v1/status?token=s3cret", header: "Bearer nope", status: http.StatusUnauthorized},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tc.url, nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			tokenRouter(tc.token).ServeHTTP(w, req)

			assert.Equal(t, tc.status, w.Code)
			if tc.status == http.StatusUnauthorized {
				assert.Contains(t, w.Body.String(), "ERR_UNAUTHORIZED")
			} else if tc.token != "" {
				assert.JSONEq(t, `{"authenticated":true}`, w.Body.String())
			}
		})
	}
}
