package gwerr

import "net/http"

// httpStatus maps each closed-set Kind to the Control API's HTTP status
// (spec §6.1/§7). Kept alongside the taxonomy itself since the mapping is
// part of the same closed set, not an API-layer decision.
var httpStatus = map[Kind]int{
	Unauthorized:        http.StatusUnauthorized,
	NotFound:            http.StatusNotFound,
	Conflict:            http.StatusConflict,
	ValidationFailed:    http.StatusBadRequest,
	NoToolsAvailable:    http.StatusUnprocessableEntity,
	ArgumentsIncomplete: http.StatusUnprocessableEntity,
	ServiceUnavailable:  http.StatusServiceUnavailable,
	RuntimeUnavailable:  http.StatusBadGateway,
	AdvisorUnavailable:  http.StatusOK, // never user-visible as a failure (spec §7)
	Timeout:             http.StatusGatewayTimeout,
	Internal:            http.StatusInternalServerError,
}

// HTTPStatus returns the status code for err, defaulting to 500 for an
// unrecognized or nil error (nil should never reach here; callers only
// call this on a non-nil error path).
func HTTPStatus(err error) int {
	kind := KindOf(err)
	if status, ok := httpStatus[kind]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// ExitCode maps a Kind to the embedded-CLI exit code (spec §6.1).
func ExitCode(kind Kind) int {
	switch kind {
	case ValidationFailed, ArgumentsIncomplete, NoToolsAvailable, Conflict:
		return 1
	case RuntimeUnavailable:
		return 2
	case NotFound:
		return 3
	case Timeout:
		return 4
	default:
		return 5
	}
}
