// Package api implements the Control API (C12, spec §4.12/§6.1): a single
// gorilla/mux HTTP surface over the Registry, Supervisor, Tool Cache,
// Router Engine, Metrics Store and Feature Flags, behind a uniform JSON
// envelope and bearer-auth delegation point.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/kubilitics/mcp-gateway/internal/gwerr"
)

// envelope is the uniform response shape every endpoint returns (spec
// §6.1 "Envelope").
type envelope struct {
	OK    bool           `json:"ok"`
	Data  any            `json:"data,omitempty"`
	Error *envelopeError `json:"error,omitempty"`
}

type envelopeError struct {
	Kind    gwerr.Kind        `json:"kind"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

func writeOK(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, envelope{OK: true, Data: data})
}

func writeError(w http.ResponseWriter, err error) {
	kind := gwerr.KindOf(err)
	var details map[string]string
	var ge *gwerr.Error
	if gwerr.As(err, &ge) {
		details = ge.Details
	}
	writeJSON(w, gwerr.HTTPStatus(err), envelope{
		OK: false,
		Error: &envelopeError{
			Kind:    kind,
			Message: err.Error(),
			Details: details,
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return gwerr.New(gwerr.ValidationFailed, "request body required")
	}
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(out); err != nil {
		return gwerr.Wrap(gwerr.ValidationFailed, err, "malformed request body")
	}
	return nil
}
