package http

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/aretw0/strata/internal/presentation/graph"
	"github.com/aretw0/strata/pkg/domain"
	"github.com/aretw0/strata/pkg/workflow"
	"github.com/getkin/kin-openapi/openapi3"
	"github.com/go-chi/chi/v5"
)

// GetHealth handles GET /health.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles GET /info.
func (s *Server) GetInfo(doc *openapi3.T) http.HandlerFunc {
	apiVersion := "unknown"
	if doc.Info != nil {
		apiVersion = doc.Info.Version
	}
	return func(w http.ResponseWriter, r *http.Request) {
		s.writeJSON(w, http.StatusOK, map[string]string{
			"app":         "strata-http",
			"version":     strings.TrimSpace(s.Version),
			"api_version": apiVersion,
		})
	}
}

// ListFacilities handles GET /facilities.
func (s *Server) ListFacilities(w http.ResponseWriter, r *http.Request) {
	rows, err := s.Storage.ListFacilities(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, rows)
}

type createFacilityRequest struct {
	Title   string         `json:"title"`
	Phone   string         `json:"phone"`
	Email   string         `json:"email"`
	Address domain.Address `json:"address"`
}

// CreateFacility handles POST /facilities.
func (s *Server) CreateFacility(w http.ResponseWriter, r *http.Request) {
	var body createFacilityRequest
	if err := decode(r, &body); err != nil {
		s.badRequest(w, err)
		return
	}
	item, err := s.Storage.CreateFacility(r.Context(), body.Title, domain.FacilityInfo{
		Phone: body.Phone, Email: body.Email, Address: body.Address,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, item)
}

// GetTree handles GET /tree and GET /items/{id}/tree.
func (s *Server) GetTree(w http.ResponseWriter, r *http.Request) {
	tree, err := s.Storage.Tree(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, tree)
}

// GetItem handles GET /items/{id}.
func (s *Server) GetItem(w http.ResponseWriter, r *http.Request) {
	item, err := s.Storage.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, item)
}

// DeleteItem handles DELETE /items/{id}.
func (s *Server) DeleteItem(w http.ResponseWriter, r *http.Request) {
	if err := s.Storage.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListChildren handles GET /items/{id}/children.
func (s *Server) ListChildren(w http.ResponseWriter, r *http.Request) {
	slots, err := s.Storage.Children(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, slots)
}

type createContainerRequest struct {
	Kind    domain.Kind `json:"kind"`
	Title   string      `json:"title"`
	Rows    int         `json:"rows"`
	Columns int         `json:"columns"`
}

// CreateContainer handles POST /items/{id}/children.
func (s *Server) CreateContainer(w http.ResponseWriter, r *http.Request) {
	var body createContainerRequest
	if err := decode(r, &body); err != nil {
		s.badRequest(w, err)
		return
	}
	item, err := s.Storage.CreateContainer(r.Context(), chi.URLParam(r, "id"), body.Kind, body.Title, body.Rows, body.Columns)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, item)
}

// MoveItem handles POST /items/{id}/move.
func (s *Server) MoveItem(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ParentID string `json:"parent_id"`
	}
	if err := decode(r, &body); err != nil {
		s.badRequest(w, err)
		return
	}
	if err := s.Storage.Move(r.Context(), chi.URLParam(r, "id"), body.ParentID); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RegisterSample handles POST /samples.
func (s *Server) RegisterSample(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Title string `json:"title"`
	}
	if err := decode(r, &body); err != nil {
		s.badRequest(w, err)
		return
	}
	sample, err := s.Storage.RegisterSample(r.Context(), body.Title)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, sample)
}

// GetSample handles GET /samples/{id}.
func (s *Server) GetSample(w http.ResponseWriter, r *http.Request) {
	sample, err := s.Storage.GetSample(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, sample)
}

type sampleRequest struct {
	Transition  string         `json:"transition"`
	ContainerID string         `json:"container_id"`
	Actor       workflow.Actor `json:"actor"`
}

// FireSampleTransition handles POST /samples/{id}/transitions.
func (s *Server) FireSampleTransition(w http.ResponseWriter, r *http.Request) {
	var body sampleRequest
	if err := decode(r, &body); err != nil {
		s.badRequest(w, err)
		return
	}
	sample, err := s.Storage.FireSample(r.Context(), chi.URLParam(r, "id"), body.Transition, body.Actor)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, sample)
}

// StoreSample handles POST /samples/{id}/store.
func (s *Server) StoreSample(w http.ResponseWriter, r *http.Request) {
	var body sampleRequest
	if err := decode(r, &body); err != nil {
		s.badRequest(w, err)
		return
	}
	sample, err := s.Storage.StoreSample(r.Context(), chi.URLParam(r, "id"), body.ContainerID, body.Actor)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, sample)
}

// RecoverSample handles POST /samples/{id}/recover.
func (s *Server) RecoverSample(w http.ResponseWriter, r *http.Request) {
	var body sampleRequest
	if err := decode(r, &body); err != nil {
		s.badRequest(w, err)
		return
	}
	sample, err := s.Storage.RecoverSample(r.Context(), chi.URLParam(r, "id"), body.Actor)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, sample)
}

// ListWorkflows handles GET /workflows.
func (s *Server) ListWorkflows(w http.ResponseWriter, r *http.Request) {
	ids, err := s.Workflows.ListWorkflows(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, ids)
}

// GetWorkflow handles GET /workflows/{id}.
func (s *Server) GetWorkflow(w http.ResponseWriter, r *http.Request) {
	def, err := s.Workflows.GetWorkflow(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, def)
}

// GetWorkflowGraph handles GET /workflows/{id}/graph.
func (s *Server) GetWorkflowGraph(w http.ResponseWriter, r *http.Request) {
	def, err := s.Workflows.GetWorkflow(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(graph.GenerateMermaid(def, nil)))
}

func mustJSON(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		return []byte(`{"error":"internal"}`)
	}
	return b
}
