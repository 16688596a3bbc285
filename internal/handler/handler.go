package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"ecordtopo/internal/codec"
	"ecordtopo/internal/domain"
	"ecordtopo/internal/emulation"
	"ecordtopo/internal/logging"
	"ecordtopo/internal/orchestrator"
	"ecordtopo/internal/srconfig"
	"ecordtopo/internal/topology"
)

// Deployment is the read side of an orchestrated deployment.
type Deployment interface {
	Domains() []int
	State(id int) (domain.State, error)
	Export(ctx context.Context, id int) (*srconfig.Document, error)
	Runtime() emulation.Runtime
}

// StatusHandler serves deployment status
type StatusHandler struct {
	dep Deployment
	log logging.Logger
}

// NewStatusHandler creates a new status handler
func NewStatusHandler(dep Deployment, log logging.Logger) *StatusHandler {
	if log == nil {
		log = logging.Noop()
	}
	return &StatusHandler{dep: dep, log: log}
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// DomainStatus is one entry of the domain listing.
type DomainStatus struct {
	ID    int          `json:"id"`
	State domain.State `json:"state"`
}

// TopologyResponse describes the runtime topology.
type TopologyResponse struct {
	Nodes     []TopologyNode `json:"nodes"`
	Links     []TopologyLink `json:"links"`
	Connected bool           `json:"connected"`
}

// TopologyNode is a runtime node in the topology response.
type TopologyNode struct {
	Name        string   `json:"name"`
	Kind        string   `json:"kind"`
	IP          string   `json:"ip,omitempty"`
	Controllers []string `json:"controllers,omitempty"`
	Running     bool     `json:"running"`
}

// TopologyLink is a runtime link in the topology response.
type TopologyLink struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Routes registers the status endpoints on mux.
func (h *StatusHandler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/domains", h.ListDomains)
	mux.HandleFunc("GET /api/domains/", h.GetDocument)
	mux.HandleFunc("GET /api/topology", h.GetTopology)
}

// ListDomains returns every domain with its lifecycle state
func (h *StatusHandler) ListDomains(w http.ResponseWriter, r *http.Request) {
	ids := h.dep.Domains()
	out := make([]DomainStatus, 0, len(ids))
	for _, id := range ids {
		state, err := h.dep.State(id)
		if err != nil {
			h.writeError(w, "Failed to read state", err.Error(), http.StatusInternalServerError)
			return
		}
		out = append(out, DomainStatus{ID: id, State: state})
	}
	h.writeJSON(w, out, http.StatusOK)
}

// GetDocument exports the segment-routing document of one domain
func (h *StatusHandler) GetDocument(w http.ResponseWriter, r *http.Request) {
	rest := extractPathParam(r.URL.Path, "/api/domains/")
	raw, ok := strings.CutSuffix(rest, "/document")
	if !ok || raw == "" {
		h.writeError(w, "Not found", r.URL.Path, http.StatusNotFound)
		return
	}
	id, err := strconv.Atoi(raw)
	if err != nil {
		h.writeError(w, "Invalid domain ID", err.Error(), http.StatusBadRequest)
		return
	}

	format := r.URL.Query().Get("format")
	enc, err := codec.ExporterFor(format)
	if err != nil {
		h.writeError(w, "Invalid format", err.Error(), http.StatusBadRequest)
		return
	}

	doc, err := h.dep.Export(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, orchestrator.ErrUnknownDomain):
			h.writeError(w, "Not found", err.Error(), http.StatusNotFound)
		case errors.Is(err, domain.ErrInvalidTransition):
			h.writeError(w, "Domain not stitched", err.Error(), http.StatusConflict)
		default:
			h.log.Error(r.Context(), "document export failed", logging.Domain(id), logging.Err(err))
			h.writeError(w, "Failed to export document", err.Error(), http.StatusInternalServerError)
		}
		return
	}

	var buf bytes.Buffer
	if err := enc.Export(doc, &buf); err != nil {
		h.log.Error(r.Context(), "document encode failed", logging.Domain(id), logging.Err(err))
		h.writeError(w, "Failed to encode document", err.Error(), http.StatusInternalServerError)
		return
	}

	if codec.Extension(format) == ".yaml" {
		w.Header().Set("Content-Type", "application/yaml")
	} else {
		w.Header().Set("Content-Type", "application/json")
	}
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

// GetTopology returns the runtime nodes and links
func (h *StatusHandler) GetTopology(w http.ResponseWriter, r *http.Request) {
	rt := h.dep.Runtime()
	resp := TopologyResponse{
		Nodes: []TopologyNode{},
		Links: []TopologyLink{},
	}
	for _, n := range rt.Nodes() {
		resp.Nodes = append(resp.Nodes, TopologyNode{
			Name:        n.Name,
			Kind:        string(n.Kind),
			IP:          n.IP,
			Controllers: n.Controllers,
			Running:     n.Running,
		})
	}
	for _, l := range rt.Links() {
		resp.Links = append(resp.Links, TopologyLink{From: l.Intf1, To: l.Intf2})
	}
	resp.Connected = topology.FromRuntime(rt).Connected()
	h.writeJSON(w, resp, http.StatusOK)
}

func (h *StatusHandler) writeJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Warn(context.Background(), "failed to encode JSON", logging.Err(err))
	}
}

func (h *StatusHandler) writeError(w http.ResponseWriter, error, details string, statusCode int) {
	h.writeJSON(w, ErrorResponse{Error: error, Details: details}, statusCode)
}

func extractPathParam(path, prefix string) string {
	if strings.HasPrefix(path, prefix) {
		return strings.TrimPrefix(path, prefix)
	}
	return ""
}
