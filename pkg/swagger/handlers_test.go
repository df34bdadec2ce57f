package swagger

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRouter(t *testing.T) *mux.Router {
	t.Helper()
	handlers, err := NewSwaggerHandlers()
	require.NoError(t, err)

	router := mux.NewRouter()
	handlers.RegisterRoutes(router)
	return router
}

func TestRouteIntegration(t *testing.T) {
	router := newRouter(t)

	tests := []struct {
		name                 string
		path                 string
		expectedContentType  string
		expectedBodyContains []string
	}{
		{
			name:                 "YAML spec",
			path:                 "/openapi.yaml",
			expectedContentType:  "application/x-yaml",
			expectedBodyContains: []string{"openapi:"},
		},
		{
			name:                 "JSON spec",
			path:                 "/openapi.json",
			expectedContentType:  "application/json",
			expectedBodyContains: []string{`"openapi"`, `"paths"`},
		},
		{
			name:                 "Swagger UI",
			path:                 "/docs",
			expectedContentType:  "text/html; charset=utf-8",
			expectedBodyContains: []string{"<!DOCTYPE html>", "SwaggerUIBundle", "/openapi.json"},
		},
		{
			name:                 "ReDoc",
			path:                 "/redoc",
			expectedContentType:  "text/html; charset=utf-8",
			expectedBodyContains: []string{"<!DOCTYPE html>", "<redoc", "/openapi.json"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, nil))

			assert.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, tt.expectedContentType, w.Header().Get("Content-Type"))
			for _, expected := range tt.expectedBodyContains {
				assert.Contains(t, w.Body.String(), expected)
			}
		})
	}
}

func TestOpenAPISpecJSON_DescribesEndpoints(t *testing.T) {
	router := newRouter(t)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/openapi.json", nil))

	var doc struct {
		OpenAPI string                     `json:"openapi"`
		Paths   map[string]json.RawMessage `json:"paths"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &doc))

	assert.Equal(t, "3.0.3", doc.OpenAPI)
	assert.Contains(t, doc.Paths, "/users")
	assert.Contains(t, doc.Paths, "/login")
	assert.Contains(t, doc.Paths, "/users/{user_id}")
}

func TestYAMLToJSON(t *testing.T) {
	out, err := yamlToJSON([]byte("a: 1\nb:\n  - x\n  - \"200\"\n"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1,"b":["x","200"]}`, string(out))

	_, err = yamlToJSON([]byte("a: [unterminated"))
	assert.Error(t, err)
}

func TestRouterMethodRestrictions(t *testing.T) {
	router := newRouter(t)

	for _, path := range []string{"/openapi.yaml", "/openapi.json", "/docs", "/redoc"} {
		t.Run("POST "+path, func(t *testing.T) {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, path, nil))
			assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
		})
	}
}
