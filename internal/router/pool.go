package router

import "context"

// ClientFor resolves the upstream.Client bound to one service's declared
// Endpoint, mirroring toolcache.FetcherFor's per-service resolution so the
// Router Engine never has to special-case connection lookup. It returns
// the same Invoker interface the Engine itself depends on, so a
// composition root can build one from *upstream.Client values directly.
type ClientFor func(serviceName string) (Invoker, error)

// InvokerPool adapts a per-service ClientFor resolver into the single
// Invoker the Engine depends on.
type InvokerPool struct {
	clientFor ClientFor
}

// NewInvokerPool builds an InvokerPool from a per-service client resolver.
func NewInvokerPool(clientFor ClientFor) *InvokerPool {
	return &InvokerPool{clientFor: clientFor}
}

// Invoke resolves serviceName's client and invokes toolName on it.
func (p *InvokerPool) Invoke(ctx context.Context, serviceName, toolName string, args map[string]any) (any, error) {
	client, err := p.clientFor(serviceName)
	if err != nil {
		return nil, err
	}
	return client.Invoke(ctx, serviceName, toolName, args)
}
