package supervisor

import (
	"github.com/kubilitics/mcp-gateway/internal/gwerr"
	"github.com/kubilitics/mcp-gateway/internal/model"
)

func errInvalidTransition(service string, from, to model.Phase) error {
	return gwerr.Newf(gwerr.Conflict, "service %q cannot transition %s -> %s", service, from, to)
}

func errMailboxFull(service string) error {
	return gwerr.Newf(gwerr.Timeout, "service %q mailbox did not accept command in time", service)
}
