package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/TimurManjosov/sprida/internal/evaluation"
	"github.com/TimurManjosov/sprida/internal/grouping"
	"github.com/TimurManjosov/sprida/internal/snapshot"
	"github.com/TimurManjosov/sprida/internal/split"
	"github.com/TimurManjosov/sprida/internal/telemetry"
)

// maxGroupIDs bounds the identifiers of one ad hoc /v1/groups call.
const maxGroupIDs = 10000

type assignRequest struct {
	ID   string   `json:"id"`
	Keys []string `json:"keys,omitempty"`
}

type assignResponse struct {
	ID          string              `json:"id"`
	Assignments []evaluation.Result `json:"assignments"`
	ETag        string              `json:"etag"`
	AssignedAt  string              `json:"assignedAt"`
}

// handleAssign handles POST /v1/assign: one identifier across all, or the
// listed, splits of the snapshot.
func (s *Server) handleAssign(w http.ResponseWriter, r *http.Request) {
	var req assignRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.ID == "" {
		BadRequestError(w, r, ErrCodeMissingField, "id is required")
		return
	}
	s.assignAll(w, req.ID, req.Keys)
}

// handleAssignGET handles GET /v1/assign?id=...&keys=a,b
func (s *Server) handleAssignGET(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		BadRequestError(w, r, ErrCodeMissingField, "id query parameter is required")
		return
	}
	s.assignAll(w, id, splitKeys(r.URL.Query().Get("keys")))
}

func (s *Server) assignAll(w http.ResponseWriter, id string, keys []string) {
	snap := snapshot.Load()
	results := evaluation.EvaluateAll(snap.All(), id, keys)
	for _, res := range results {
		recordResult(res)
	}

	writeJSON(w, http.StatusOK, assignResponse{
		ID:          id,
		Assignments: results,
		ETag:        snap.ETag,
		AssignedAt:  time.Now().UTC().Format(time.RFC3339),
	})
}

// handleAssignOne handles GET /v1/assign/{key}?id=...
func (s *Server) handleAssignOne(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	id := r.URL.Query().Get("id")
	if id == "" {
		BadRequestError(w, r, ErrCodeMissingField, "id query parameter is required")
		return
	}

	c, ok := snapshot.Load().Compiled(key)
	if !ok {
		NotFoundError(w, r, "Split not found: "+key)
		return
	}

	a, err := c.Assign(id)
	if err != nil {
		if errors.Is(err, grouping.ErrInsufficientEntropy) {
			telemetry.InsufficientEntropy.WithLabelValues(key).Inc()
			UnprocessableError(w, r, ErrCodeInsufficientEntropy, err.Error())
			return
		}
		InternalError(w, r, err.Error())
		return
	}
	telemetry.Assignments.WithLabelValues(key, a.Group).Inc()

	writeJSON(w, http.StatusOK, a)
}

type groupsRequest struct {
	Alphabet        string    `json:"alphabet,omitempty"`
	CaseInsensitive bool      `json:"caseInsensitive,omitempty"`
	Salt            string    `json:"salt,omitempty"`
	Weights         []float64 `json:"weights"`
	IDs             []string  `json:"ids"`
}

type groupResult struct {
	ID    string `json:"id"`
	Group int    `json:"group"`
	Error string `json:"error,omitempty"`
}

type groupsResponse struct {
	AlphabetSize int           `json:"alphabetSize"`
	Entropy      int           `json:"entropy"`
	Results      []groupResult `json:"results"`
}

// handleGroups handles POST /v1/groups: assignment against an inline model and
// weight vector, without a stored split. Group is -1 for rejected identifiers.
func (s *Server) handleGroups(w http.ResponseWriter, r *http.Request) {
	var req groupsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if len(req.IDs) == 0 {
		BadRequestError(w, r, ErrCodeMissingField, "ids is required")
		return
	}
	if len(req.IDs) > maxGroupIDs {
		BadRequestError(w, r, ErrCodeBadRequest, "at most 10000 ids per request")
		return
	}
	if err := grouping.ValidateWeights(req.Weights); err != nil {
		BadRequestError(w, r, ErrCodeInvalidWeight, err.Error())
		return
	}

	model, err := split.NewModel(req.Alphabet, req.CaseInsensitive, req.Salt)
	if err != nil {
		BadRequestError(w, r, ErrCodeInvalidModel, err.Error())
		return
	}

	resp := groupsResponse{
		AlphabetSize: model.Size(),
		Entropy:      model.Entropy(),
		Results:      make([]groupResult, len(req.IDs)),
	}
	for i, id := range req.IDs {
		g, err := model.Assign(req.Weights, id)
		if err != nil {
			resp.Results[i] = groupResult{ID: id, Group: -1, Error: err.Error()}
			continue
		}
		resp.Results[i] = groupResult{ID: id, Group: g}
	}

	writeJSON(w, http.StatusOK, resp)
}

func recordResult(res evaluation.Result) {
	switch res.Reason {
	case evaluation.ReasonAssigned:
		telemetry.Assignments.WithLabelValues(res.Key, res.Group).Inc()
	case evaluation.ReasonInsufficientEntropy:
		telemetry.InsufficientEntropy.WithLabelValues(res.Key).Inc()
	}
}

// splitKeys parses a comma separated key list, dropping blanks.
func splitKeys(s string) []string {
	var keys []string
	for _, k := range strings.Split(s, ",") {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}
