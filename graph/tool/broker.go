package tool

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

type cataloguedTool struct {
	spec       Spec
	serverName string
}

// Broker owns the registry of tool servers and their cached catalogues. It
// is safe for concurrent use across runs; the registry itself is read-mostly
// and guarded by a mutex for register/unregister, per §5.
type Broker struct {
	mu          sync.RWMutex
	servers     map[string]transport
	descriptors map[string]ServerDescriptor
	catalogue   map[string]cataloguedTool // tool name -> owning server + spec

	// stdio transports serialize invocations; http transports may run
	// invocations concurrently. Per-server call locks enforce this.
	callLocks map[string]*sync.Mutex

	callTimeout time.Duration

	// OnProblem, if set, is invoked for conditions the spec calls out as
	// problems rather than hard errors (e.g. tool name collisions across
	// servers). Nothing in this module sets it; a host may.
	OnProblem func(message string)
}

// NewBroker creates an empty broker. callTimeout bounds how long Invoke
// waits for a reply before returning ErrCallTimeout.
func NewBroker(callTimeout time.Duration) *Broker {
	if callTimeout <= 0 {
		callTimeout = 30 * time.Second
	}
	return &Broker{
		servers:     make(map[string]transport),
		descriptors: make(map[string]ServerDescriptor),
		catalogue:   make(map[string]cataloguedTool),
		callLocks:   make(map[string]*sync.Mutex),
		callTimeout: callTimeout,
	}
}

// Register opens the transport for descriptor, performs its handshake,
// fetches its tool catalogue, and caches it. Connection failure is fatal
// for registration: no partial state is retained.
func (b *Broker) Register(ctx context.Context, desc ServerDescriptor) ([]Spec, error) {
	var t transport
	switch desc.Kind {
	case TransportStdio:
		t = newStdioTransport(desc)
	case TransportHTTP:
		t = newHTTPTransport(desc)
	default:
		return nil, fmt.Errorf("tool: unknown transport kind %q for server %q", desc.Kind, desc.Name)
	}

	if err := t.Handshake(ctx); err != nil {
		return nil, fmt.Errorf("tool: handshake with server %q failed: %w", desc.Name, err)
	}

	specs, err := t.ListTools(ctx)
	if err != nil {
		_ = t.Shutdown(ctx)
		return nil, fmt.Errorf("tool: listing tools from server %q failed: %w", desc.Name, err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.servers[desc.Name] = t
	b.descriptors[desc.Name] = desc
	b.callLocks[desc.Name] = &sync.Mutex{}

	for _, spec := range specs {
		if existing, collides := b.catalogue[spec.Name]; collides {
			// First-registered wins; the collision is a problem, not a
			// silent shadow.
			if b.OnProblem != nil {
				b.OnProblem(fmt.Sprintf("tool %q offered by server %q collides with existing owner %q; keeping original owner",
					spec.Name, desc.Name, existing.serverName))
			}
			continue
		}
		b.catalogue[spec.Name] = cataloguedTool{spec: spec, serverName: desc.Name}
	}

	return specs, nil
}

// Unregister closes the server's transport and removes its catalogue
// entries.
func (b *Broker) Unregister(ctx context.Context, name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.servers[name]
	if !ok {
		return ErrUnknownTool
	}
	for toolName, ct := range b.catalogue {
		if ct.serverName == name {
			delete(b.catalogue, toolName)
		}
	}
	delete(b.servers, name)
	delete(b.descriptors, name)
	delete(b.callLocks, name)
	return t.Shutdown(ctx)
}

// ListTools returns the cached catalogue. If server is non-empty, only
// tools owned by that server are returned.
func (b *Broker) ListTools(server string) []Spec {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]Spec, 0, len(b.catalogue))
	for _, ct := range b.catalogue {
		if server != "" && ct.serverName != server {
			continue
		}
		out = append(out, ct.spec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Specs returns the cached Spec for each name in names, in order, skipping
// names with no registered owner. Used by the LLM-tools executor to build
// the tool schema list it shows the model for a given node's tool set.
func (b *Broker) Specs(names []string) []Spec {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]Spec, 0, len(names))
	for _, n := range names {
		if ct, ok := b.catalogue[n]; ok {
			out = append(out, ct.spec)
		}
	}
	return out
}

// Invoke looks up which server owns toolName, sends an invocation frame
// carrying correlationID, and blocks until a reply arrives or the per-call
// deadline expires. A transport-level disconnect fails the call with
// ErrTransportLost after one reconnect attempt.
func (b *Broker) Invoke(ctx context.Context, toolName string, args map[string]interface{}, correlationID string) (Result, error) {
	b.mu.RLock()
	ct, ok := b.catalogue[toolName]
	if !ok {
		b.mu.RUnlock()
		return Result{}, ErrUnknownTool
	}
	t := b.servers[ct.serverName]
	lock := b.callLocks[ct.serverName]
	serialize := b.descriptors[ct.serverName].Kind == TransportStdio
	serverName := ct.serverName
	b.mu.RUnlock()

	callCtx, cancel := context.WithTimeout(ctx, b.callTimeout)
	defer cancel()

	if serialize {
		lock.Lock()
	}
	result, err := t.Invoke(callCtx, toolName, args, correlationID)
	if serialize {
		lock.Unlock()
	}

	if err == nil {
		return result, nil
	}
	if callCtx.Err() != nil {
		return Result{}, ErrCallTimeout
	}

	// One reconnect attempt on transport loss.
	b.mu.Lock()
	desc, hasDesc := b.descriptors[serverName]
	b.mu.Unlock()
	if !hasDesc {
		return Result{}, fmt.Errorf("%w: %v", ErrTransportLost, err)
	}

	newTransport, regErr := b.reconnect(ctx, desc)
	if regErr != nil {
		return Result{}, fmt.Errorf("%w: reconnect failed: %v", ErrTransportLost, regErr)
	}

	if serialize {
		lock.Lock()
	}
	result, err = newTransport.Invoke(callCtx, toolName, args, correlationID)
	if serialize {
		lock.Unlock()
	}
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrTransportLost, err)
	}
	return result, nil
}

func (b *Broker) reconnect(ctx context.Context, desc ServerDescriptor) (transport, error) {
	var t transport
	switch desc.Kind {
	case TransportStdio:
		t = newStdioTransport(desc)
	case TransportHTTP:
		t = newHTTPTransport(desc)
	default:
		return nil, fmt.Errorf("tool: unknown transport kind %q", desc.Kind)
	}
	if err := t.Handshake(ctx); err != nil {
		return nil, err
	}
	b.mu.Lock()
	b.servers[desc.Name] = t
	b.mu.Unlock()
	return t, nil
}
