package api

import (
	"net/http"
	"strings"

	"github.com/kubilitics/mcp-gateway/internal/gwerr"
)

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	_, body := h.Health(r.Context())
	writeOK(w, body)
}

func (h *Handler) handleListServices(w http.ResponseWriter, r *http.Request) {
	writeOK(w, h.ListServices())
}

func (h *Handler) handleEnableService(w http.ResponseWriter, r *http.Request) {
	result, err := h.EnableService(r.Context(), pathVar(r, "name"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, result)
}

func (h *Handler) handleDisableService(w http.ResponseWriter, r *http.Request) {
	result, err := h.DisableService(r.Context(), pathVar(r, "name"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, result)
}

func (h *Handler) handleWakeService(w http.ResponseWriter, r *http.Request) {
	result, err := h.WakeServiceNow(r.Context(), pathVar(r, "name"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, result)
}

func (h *Handler) handleSleepService(w http.ResponseWriter, r *http.Request) {
	result, err := h.SleepServiceNow(r.Context(), pathVar(r, "name"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, result)
}

func (h *Handler) handleListVirtualServers(w http.ResponseWriter, r *http.Request) {
	result, err := h.ListVirtualServers()
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, result)
}

func (h *Handler) handleVirtualServerTools(w http.ResponseWriter, r *http.Request) {
	result, err := h.VirtualServerTools(pathVar(r, "name"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, result)
}

func (h *Handler) handleRouterExecute(w http.ResponseWriter, r *http.Request) {
	var req RouterExecuteRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	result, err := h.Execute(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, result)
}

func (h *Handler) handleRouterMetrics(w http.ResponseWriter, r *http.Request) {
	writeOK(w, h.RouterMetrics())
}

func (h *Handler) handleRouterHealth(w http.ResponseWriter, r *http.Request) {
	writeOK(w, h.RouterHealth(r.Context()))
}

func (h *Handler) handleSystemMetrics(w http.ResponseWriter, r *http.Request) {
	writeOK(w, h.SystemMetrics())
}

func (h *Handler) handleListFlags(w http.ResponseWriter, r *http.Request) {
	writeOK(w, h.ListFlags())
}

func (h *Handler) handleSetFlag(w http.ResponseWriter, r *http.Request) {
	full := pathVar(r, "name")
	category, name, ok := strings.Cut(full, ".")
	if !ok {
		writeError(w, gwerr.Newf(gwerr.ValidationFailed, "flag name %q must be category.name", full))
		return
	}
	var req SetFlagRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	result, err := h.SetFlag(r.Context(), category, name, req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, result)
}
