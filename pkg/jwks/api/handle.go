package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/sau-dev/something-about-us/pkg/jwks"
)

// Handle serves the public verification key set.
type Handle struct {
	jwtService *jwks.Service
}

// NewHandle creates the JWKS endpoint handler.
func NewHandle(jwtService *jwks.Service) *Handle {
	return &Handle{jwtService: jwtService}
}

// Jwks handles GET /api/v1/jwks. Only public key material is returned.
func (h *Handle) Jwks(w http.ResponseWriter, r *http.Request) {
	render.Status(r, http.StatusOK)
	render.JSON(w, r, h.jwtService.JWKS())
}

// Routes returns the router for the JWKS endpoint.
func (h *Handle) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.Jwks)
	return r
}
