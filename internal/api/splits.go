package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/TimurManjosov/sprida/internal/snapshot"
	"github.com/TimurManjosov/sprida/internal/split"
	"github.com/TimurManjosov/sprida/internal/store"
	"github.com/TimurManjosov/sprida/internal/validation"
)

type upsertRequest struct {
	Description     string        `json:"description"`
	Alphabet        string        `json:"alphabet,omitempty"`
	CaseInsensitive bool          `json:"caseInsensitive,omitempty"`
	Salt            string        `json:"salt,omitempty"`
	Groups          []split.Group `json:"groups"`
}

type upsertResponse struct {
	OK    bool         `json:"ok"`
	ETag  string       `json:"etag"`
	Split *store.Split `json:"split,omitempty"`
}

// handleListSplits serves the whole snapshot; If-None-Match short-circuits to 304.
func (s *Server) handleListSplits(w http.ResponseWriter, r *http.Request) {
	snap := snapshot.Load()
	noCache(w)
	if inm := r.Header.Get("If-None-Match"); inm != "" && inm == snap.ETag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("ETag", snap.ETag)
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleGetSplit(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	sp, ok := snapshot.Load().Splits[key]
	if !ok {
		NotFoundError(w, r, "Split not found: "+key)
		return
	}
	writeJSON(w, http.StatusOK, sp)
}

func (s *Server) handleUpsertSplit(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimSpace(chi.URLParam(r, "key"))

	var req upsertRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	params := validation.SplitValidationParams{
		Key:             key,
		Env:             s.env,
		Description:     req.Description,
		Alphabet:        req.Alphabet,
		CaseInsensitive: req.CaseInsensitive,
		Salt:            req.Salt,
	}
	for _, g := range req.Groups {
		params.Groups = append(params.Groups, validation.GroupValidationParams{Name: g.Name, Weight: g.Weight})
	}
	if result := validation.ValidateSplit(params); !result.Valid {
		ValidationError(w, r, "Split validation failed", result.Errors)
		return
	}

	upsert := store.UpsertParams{
		Key:             key,
		Description:     req.Description,
		Alphabet:        req.Alphabet,
		CaseInsensitive: req.CaseInsensitive,
		Salt:            req.Salt,
		Groups:          req.Groups,
		Env:             s.env,
	}

	// refuse anything the snapshot would later drop
	if _, err := split.Compile(split.Definition{
		Key:             upsert.Key,
		Alphabet:        upsert.Alphabet,
		CaseInsensitive: upsert.CaseInsensitive,
		Salt:            upsert.Salt,
		Groups:          upsert.Groups,
	}); err != nil {
		BadRequestError(w, r, ErrCodeInvalidModel, err.Error())
		return
	}

	before, err := s.currentSplit(r, key)
	if err != nil {
		s.logger.Error().Err(err).Str("split", key).Msg("load current split failed")
		InternalError(w, r, "Failed to load split")
		return
	}

	saved, err := s.store.UpsertSplit(r.Context(), upsert)
	if err != nil {
		s.logger.Error().Err(err).Str("split", key).Msg("upsert failed")
		InternalError(w, r, "Failed to save split")
		return
	}

	if err := s.RebuildSnapshot(r.Context()); err != nil {
		s.logger.Error().Err(err).Msg("snapshot rebuild failed")
		InternalError(w, r, "Snapshot rebuild failed")
		return
	}

	etag := snapshot.Load().ETag
	s.recordChange(r, key, before, saved, etag)
	writeJSON(w, http.StatusOK, upsertResponse{OK: true, ETag: etag, Split: saved})
}

func (s *Server) handleDeleteSplit(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimSpace(chi.URLParam(r, "key"))
	if result := validation.ValidateKey(key); !result.Valid {
		BadRequestError(w, r, ErrCodeInvalidKey, result.Errors["key"])
		return
	}

	before, err := s.currentSplit(r, key)
	if err != nil {
		s.logger.Error().Err(err).Str("split", key).Msg("load current split failed")
		InternalError(w, r, "Failed to load split")
		return
	}
	if before == nil {
		NotFoundError(w, r, "Split not found: "+key)
		return
	}

	if err := s.store.DeleteSplit(r.Context(), s.env, key); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			NotFoundError(w, r, "Split not found: "+key)
			return
		}
		s.logger.Error().Err(err).Str("split", key).Msg("delete failed")
		InternalError(w, r, "Failed to delete split")
		return
	}

	if err := s.RebuildSnapshot(r.Context()); err != nil {
		s.logger.Error().Err(err).Msg("snapshot rebuild failed")
		InternalError(w, r, "Snapshot rebuild failed")
		return
	}

	etag := snapshot.Load().ETag
	s.recordChange(r, key, before, nil, etag)
	writeJSON(w, http.StatusOK, upsertResponse{OK: true, ETag: etag})
}
