package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/TimurManjosov/sprida/internal/audit"
	"github.com/TimurManjosov/sprida/internal/auth"
	"github.com/TimurManjosov/sprida/internal/store"
	"github.com/TimurManjosov/sprida/internal/webhook"
)

// recordChange reports a split change to the audit log and webhook
// subscribers. A nil before means the split was created, a nil after means it
// was deleted.
func (s *Server) recordChange(r *http.Request, key string, before, after *store.Split, etag string) {
	if before == nil && after == nil {
		return
	}

	action := audit.ActionUpdated
	switch {
	case before == nil:
		action = audit.ActionCreated
	case after == nil:
		action = audit.ActionDeleted
	}

	if s.audit != nil {
		principal, _ := auth.PrincipalFromContext(r.Context())
		kind := audit.ActorKindAPIKey
		if principal == auth.AdminPrincipal {
			kind = audit.ActorKindAdmin
		}
		s.audit.Log(audit.NewEventBuilder(r).
			ForSplit(s.env, key).
			WithActor(kind, principal).
			WithAction(action).
			WithStates(before, after).
			Build())
	}

	if s.webhooks != nil {
		// receivers never see salts
		redactor := audit.NewDefaultRedactor()
		beforeState := redactor.Redact(audit.SplitState(before))
		afterState := redactor.Redact(audit.SplitState(after))
		s.webhooks.Dispatch(webhook.NewEventBuilder(r).
			ForSplit(s.env, key).
			WithStates(beforeState, afterState).
			WithChanges(audit.ComputeChanges(beforeState, afterState)).
			WithETag(etag).
			Build())
	}
}

func (s *Server) recordAuthFailure(r *http.Request, reason string) {
	if s.audit == nil {
		return
	}
	s.audit.Log(audit.NewEventBuilder(r).
		ForSplit(s.env, chi.URLParam(r, "key")).
		WithAction(audit.ActionAuthFailed).
		Failure(reason).
		Build())
}

// currentSplit returns the stored split or nil when it does not exist.
func (s *Server) currentSplit(r *http.Request, key string) (*store.Split, error) {
	sp, err := s.store.GetSplit(r.Context(), s.env, key)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	return sp, err
}
