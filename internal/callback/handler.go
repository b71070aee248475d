// handler.go -- HTTP handlers for the coordinator endpoints.
package callback

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/MGallo-Code/callbackd/internal/identity"
	"github.com/MGallo-Code/callbackd/internal/metrics"
)

// Route paths. Shared with the flow driver client.
const (
	PathStoreToken     = "/store/token"
	PathPing           = "/ping"
	PathOAuth2Callback = "/oauth2/callback"
)

// CompletedMessage is the success body message for PathOAuth2Callback.
const CompletedMessage = "completed OAuth2 3LO flow successfully"

// maxStoreBody caps the identifier request body.
const maxStoreBody = 64 << 10

// pingResponse is the body of GET /ping.
type pingResponse struct {
	Status string `json:"status"`
}

// Handler exposes a Coordinator over HTTP. Metrics may be nil.
type Handler struct {
	Coord   *Coordinator
	Metrics *metrics.Metrics
}

// StoreToken handles POST /store/token -- arms the coordinator with the posted identifier.
// Replaces any earlier identifier. Responds 204 with no body.
func (h *Handler) StoreToken(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxStoreBody)

	var id identity.UserTokenIdentifier
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(&id); err != nil {
		logWarn(r, "store token: undecodable body", "error", err)
		BadRequest(w, r, "invalid identifier body")
		return
	}
	// Exactly one JSON value; anything after it is a malformed body.
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		logWarn(r, "store token: trailing data after identifier", "error", err)
		BadRequest(w, r, "invalid identifier body")
		return
	}

	gen, err := h.Coord.Store(id)
	if errors.Is(err, ErrInvalidIdentifier) {
		BadRequest(w, r, "identifier must set exactly one of user_token or user_id")
		return
	}
	if err != nil {
		InternalServerError(w, r, err)
		return
	}

	logInfo(r, "user token identifier stored", "generation", gen.String(), "identifier_kind", id.Kind())
	w.WriteHeader(http.StatusNoContent)
}

// Ping handles GET /ping -- liveness only. Answers the same whether or not an identifier is stored.
func (h *Handler) Ping(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, pingResponse{Status: "success"})
}

// OAuth2Callback handles GET /oauth2/callback?session_id=... -- the authorization server's
// redirect target. Completes the flow with the identity service before responding.
func (h *Handler) OAuth2Callback(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")

	p, err := h.Coord.Complete(r.Context(), sessionID)
	switch {
	case err == nil:
		h.Metrics.IncrementOutcome(metrics.OutcomeCompleted)
		logInfo(r, "oauth2 3lo flow completed", "generation", p.Generation.String())
		OK(w, CompletedMessage)

	case errors.Is(err, ErrMissingSessionID):
		h.Metrics.IncrementOutcome(metrics.OutcomeInvalidRequest)
		BadRequest(w, r, err.Error())

	case errors.Is(err, ErrNoPendingIdentifier):
		// Sequencing fault between flow driver and coordinator; operators need to see it.
		h.Metrics.IncrementOutcome(metrics.OutcomeNotArmed)
		logError(r, "oauth2 callback: no user token identifier stored", "session_id", sessionID)
		writeJSON(w, http.StatusInternalServerError, messageResponse{Message: "internal server error"})

	default:
		h.Metrics.IncrementOutcome(metrics.OutcomeUpstreamFailure)
		kind := identity.KindOf(err)
		logError(r, "oauth2 callback: identity service failed",
			"error", err, "kind", string(kind), "generation", p.Generation.String())
		UpstreamFailure(w, string(kind))
	}
}
