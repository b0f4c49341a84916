// Package wellknown serves the service's self-describing endpoints: the
// liveness check and the OpenAPI document covering the public API.
package wellknown

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"net/http"
)

//go:embed openapi.yaml
var openapiSpec []byte

const heartbeatBody = "Ok - Something About Us"

// Handler provides HTTP handlers for the heartbeat and OpenAPI endpoints.
type Handler struct {
	document []byte
}

// NewHandler validates the embedded OpenAPI document and caches its JSON
// form. An invalid document is a build defect, so construction fails.
func NewHandler() (*Handler, error) {
	doc, err := loadOpenAPIDocument()
	if err != nil {
		return nil, err
	}

	document, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal openapi document: %w", err)
	}
	return &Handler{document: document}, nil
}

// Heartbeat handles GET /api/v1/heartbeat.
func (h *Handler) Heartbeat(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(heartbeatBody))
}

// OpenAPI handles GET /api-doc/openapi.json.
func (h *Handler) OpenAPI(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.WriteHeader(http.StatusOK)
	w.Write(h.document)
}
