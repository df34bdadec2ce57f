package swagger

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"

	"github.com/gorilla/mux"
	"gopkg.in/yaml.v3"

	"github.com/platinummonkey/iam/pkg/httputil"
)

//go:embed openapi.yaml
var openapiSpec []byte

var (
	swaggerUI = template.Must(template.New("swagger").Parse(swaggerUITemplate))
	redocUI   = template.Must(template.New("redoc").Parse(redocTemplate))
)

// SwaggerHandlers provides HTTP handlers for OpenAPI/Swagger documentation
type SwaggerHandlers struct {
	specJSON []byte
}

// NewSwaggerHandlers converts the embedded OpenAPI document to JSON once
func NewSwaggerHandlers() (*SwaggerHandlers, error) {
	specJSON, err := yamlToJSON(openapiSpec)
	if err != nil {
		return nil, fmt.Errorf("failed to convert OpenAPI document: %w", err)
	}
	return &SwaggerHandlers{specJSON: specJSON}, nil
}

// RegisterRoutes registers the swagger routes with the router
func (h *SwaggerHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/openapi.yaml", h.serveOpenAPISpec).Methods(http.MethodGet)
	router.HandleFunc("/openapi.json", h.serveOpenAPISpecJSON).Methods(http.MethodGet)
	router.HandleFunc("/docs", h.serveSwaggerUI).Methods(http.MethodGet)
	router.HandleFunc("/redoc", h.serveRedoc).Methods(http.MethodGet)
}

// serveOpenAPISpec serves the OpenAPI specification in YAML format
func (h *SwaggerHandlers) serveOpenAPISpec(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/x-yaml")
	w.WriteHeader(http.StatusOK)
	w.Write(openapiSpec)
}

// serveOpenAPISpecJSON serves the OpenAPI specification in JSON format
func (h *SwaggerHandlers) serveOpenAPISpecJSON(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(h.specJSON)
}

// serveSwaggerUI serves the Swagger UI HTML page
func (h *SwaggerHandlers) serveSwaggerUI(w http.ResponseWriter, r *http.Request) {
	serveTemplate(w, swaggerUI)
}

// serveRedoc serves the ReDoc HTML page
func (h *SwaggerHandlers) serveRedoc(w http.ResponseWriter, r *http.Request) {
	serveTemplate(w, redocUI)
}

func serveTemplate(w http.ResponseWriter, tmpl *template.Template) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := tmpl.Execute(w, nil); err != nil {
		httputil.WriteInternalError(w)
	}
}

// yamlToJSON re-encodes a YAML document as JSON. Mapping keys must be
// strings, which holds for OpenAPI documents with quoted status codes.
func yamlToJSON(data []byte) ([]byte, error) {
	var doc interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return json.Marshal(doc)
}

const swaggerUITemplate = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <title>IAM Service - Swagger UI</title>
  <link rel="stylesheet" type="text/css" href="https://cdn.jsdelivr.net/npm/swagger-ui-dist@5.10.5/swagger-ui.css" />
</head>
<body>
<div id="swagger-ui"></div>

<script src="https://cdn.jsdelivr.net/npm/swagger-ui-dist@5.10.5/swagger-ui-bundle.js" charset="UTF-8"></script>
<script>
window.onload = function() {
  window.ui = SwaggerUIBundle({
    url: "/openapi.json",
    dom_id: '#swagger-ui',
    deepLinking: true,
    presets: [SwaggerUIBundle.presets.apis],
    layout: "BaseLayout"
  });
};
</script>
</body>
</html>`

const redocTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <title>IAM Service - ReDoc</title>
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <style>
    body {
      margin: 0;
      padding: 0;
    }
  </style>
</head>
<body>
<redoc spec-url="/openapi.json"></redoc>
<script src="https://cdn.jsdelivr.net/npm/redoc@2.1.3/bundles/redoc.standalone.js"></script>
</body>
</html>`
