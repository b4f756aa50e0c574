// Package http exposes the storage service as a JSON API routed with chi.
// Requests are validated against the embedded OpenAPI document.
package http

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aretw0/strata/internal/logging"
	"github.com/aretw0/strata/pkg/domain"
	"github.com/aretw0/strata/pkg/ports"
	"github.com/aretw0/strata/pkg/storage"
	"github.com/aretw0/strata/pkg/workflow"
	"github.com/getkin/kin-openapi/openapi3"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

//go:embed openapi.yaml
var rawSpec []byte

// Storage is the subset of storage.Service served over HTTP.
type Storage interface {
	ListFacilities(ctx context.Context) ([]storage.FacilityRow, error)
	CreateFacility(ctx context.Context, title string, info domain.FacilityInfo) (*domain.Item, error)
	CreateContainer(ctx context.Context, parentID string, kind domain.Kind, title string, rows, columns int) (*domain.Item, error)
	Get(ctx context.Context, id string) (*domain.Item, error)
	Children(ctx context.Context, id string) ([]storage.Slot, error)
	Tree(ctx context.Context, rootID string) (*storage.TreeNode, error)
	Move(ctx context.Context, childID, newParentID string) error
	Delete(ctx context.Context, id string) error
	RegisterSample(ctx context.Context, title string) (*domain.Sample, error)
	GetSample(ctx context.Context, id string) (*domain.Sample, error)
	FireSample(ctx context.Context, sampleID, transitionID string, actor workflow.Actor) (*domain.Sample, error)
	StoreSample(ctx context.Context, sampleID, boxID string, actor workflow.Actor) (*domain.Sample, error)
	RecoverSample(ctx context.Context, sampleID string, actor workflow.Actor) (*domain.Sample, error)
}

var _ Storage = (*storage.Service)(nil)

// Server holds the handler dependencies.
type Server struct {
	Storage   Storage
	Workflows ports.WorkflowStore
	Version   string

	logger  *slog.Logger
	metrics http.Handler
}

// Option configures the handler.
type Option func(*Server)

// WithLogger configures a logger for request errors.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithMetrics mounts h on /metrics.
func WithMetrics(h http.Handler) Option {
	return func(s *Server) { s.metrics = h }
}

// WithVersion sets the version reported by /info.
func WithVersion(v string) Option {
	return func(s *Server) { s.Version = v }
}

// GetSwagger parses and validates the embedded OpenAPI document.
func GetSwagger() (*openapi3.T, error) {
	doc, err := openapi3.NewLoader().LoadFromData(rawSpec)
	if err != nil {
		return nil, err
	}
	if err := doc.Validate(context.Background()); err != nil {
		return nil, err
	}
	return doc, nil
}

// NewHandler creates the HTTP handler. It fails when the embedded OpenAPI
// document is invalid.
func NewHandler(svc Storage, workflows ports.WorkflowStore, opts ...Option) (http.Handler, error) {
	s := &Server{Storage: svc, Workflows: workflows, Version: "dev", logger: logging.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	doc, err := GetSwagger()
	if err != nil {
		return nil, err
	}
	validate, err := validator(doc)
	if err != nil {
		return nil, err
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(enableCORS)

	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/yaml")
		_, _ = w.Write(rawSpec)
	})
	r.Get("/swagger", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(swaggerHTML))
	})
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}

	r.Group(func(r chi.Router) {
		r.Use(validate)
		r.Get("/health", s.GetHealth)
		r.Get("/info", s.GetInfo(doc))
		r.Get("/facilities", s.ListFacilities)
		r.Post("/facilities", s.CreateFacility)
		r.Get("/tree", s.GetTree)
		r.Route("/items/{id}", func(r chi.Router) {
			r.Get("/", s.GetItem)
			r.Delete("/", s.DeleteItem)
			r.Get("/children", s.ListChildren)
			r.Post("/children", s.CreateContainer)
			r.Get("/tree", s.GetTree)
			r.Post("/move", s.MoveItem)
		})
		r.Post("/samples", s.RegisterSample)
		r.Route("/samples/{id}", func(r chi.Router) {
			r.Get("/", s.GetSample)
			r.Post("/transitions", s.FireSampleTransition)
			r.Post("/store", s.StoreSample)
			r.Post("/recover", s.RecoverSample)
		})
		r.Get("/workflows", s.ListWorkflows)
		r.Get("/workflows/{id}", s.GetWorkflow)
		r.Get("/workflows/{id}/graph", s.GetWorkflowGraph)
	})
	return r, nil
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

const swaggerHTML = `
<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="utf-8" />
    <title>Strata API Documentation</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5.11.0/swagger-ui.css" />
</head>
<body>
<div id="swagger-ui"></div>
<script src="https://unpkg.com/swagger-ui-dist@5.11.0/swagger-ui-bundle.js" crossorigin></script>
<script>
    window.onload = () => {
    window.ui = SwaggerUIBundle({ url: '/openapi.yaml', dom_id: '#swagger-ui' });
    };
</script>
</body>
</html>
`

// -- Helpers --

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Response encode failed", "error", err)
	}
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrWorkflowNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrCapacityExceeded), errors.Is(err, domain.ErrNotEmpty),
		errors.Is(err, domain.ErrDuplicateChild), errors.Is(err, domain.ErrTransitionNotAllowed):
		return http.StatusConflict
	case errors.Is(err, domain.ErrGuardDenied):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrInvalidHierarchy), errors.Is(err, domain.ErrInvalidDimensions),
		errors.Is(err, domain.ErrInvalidPatch):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("Request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	} else {
		s.logger.Debug("Request rejected", "method", r.Method, "path", r.URL.Path, "status", status, "error", err)
	}
	s.writeJSON(w, status, errorResponse{Error: err.Error()})
}

func decode(r *http.Request, v any) error {
	if r.ContentLength == 0 {
		return nil
	}
	return json.NewDecoder(r.Body).Decode(v)
}

func (s *Server) badRequest(w http.ResponseWriter, err error) {
	s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: strings.TrimSpace(err.Error())})
}
