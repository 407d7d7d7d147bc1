package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Registry is a tree of procedures assembled at startup. It is an
// explicit object handed to the transport adapter, not a process-wide
// singleton, so tests construct fresh registries freely.
type Registry struct {
	procedures map[string]*Procedure
	children   map[string]*Registry
	stages     []Middleware
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		procedures: make(map[string]*Procedure),
		children:   make(map[string]*Registry),
	}
}

// Use appends stages that wrap every procedure reachable from this
// node, in registration order.
func (r *Registry) Use(stages ...Middleware) {
	r.stages = append(r.stages, stages...)
}

// Handle registers a procedure under its own name. Duplicate or nested
// names are construction defects and panic, matching mux behaviour.
func (r *Registry) Handle(p *Procedure) {
	if p == nil {
		panic("rpc: nil procedure")
	}
	name := p.Name()
	if strings.Contains(name, ".") {
		panic(fmt.Sprintf("rpc: procedure name %q must not contain dots", name))
	}
	if _, dup := r.procedures[name]; dup {
		panic(fmt.Sprintf("rpc: duplicate procedure %q", name))
	}
	if _, dup := r.children[name]; dup {
		panic(fmt.Sprintf("rpc: procedure %q collides with mounted registry", name))
	}
	r.procedures[name] = p
}

// Mount attaches a child registry under a namespace.
func (r *Registry) Mount(name string, child *Registry) {
	if name == "" || strings.Contains(name, ".") {
		panic(fmt.Sprintf("rpc: invalid mount name %q", name))
	}
	if child == nil {
		panic("rpc: nil registry")
	}
	if _, dup := r.children[name]; dup {
		panic(fmt.Sprintf("rpc: duplicate mount %q", name))
	}
	if _, dup := r.procedures[name]; dup {
		panic(fmt.Sprintf("rpc: mount %q collides with procedure", name))
	}
	r.children[name] = child
}

// Lookup resolves a dotted path such as "records.list". The returned
// middleware covers every node along the path, outermost first.
func (r *Registry) Lookup(path string) (*Procedure, []Middleware, bool) {
	node := r
	stages := append([]Middleware(nil), r.stages...)
	rest := path
	for {
		head, tail, nested := strings.Cut(rest, ".")
		if !nested {
			p, ok := node.procedures[head]
			return p, stages, ok && p != nil
		}
		child, ok := node.children[head]
		if !ok {
			return nil, nil, false
		}
		node = child
		stages = append(stages, child.stages...)
		rest = tail
	}
}

// Dispatch resolves the named procedure and runs it. An unregistered
// name is a NotFound domain error, never a panic.
func (r *Registry) Dispatch(ctx context.Context, name string, raw json.RawMessage, call Ctx) (any, error) {
	proc, stages, ok := r.Lookup(name)
	if !ok {
		return nil, NotFound("procedure %q is not registered", name)
	}
	call.Procedure = name
	if len(stages) == 0 {
		return proc.Call(ctx, call, raw)
	}
	return Chain(stages...)(ctx, call, func(ctx context.Context, call Ctx) (any, error) {
		return proc.Call(ctx, call, raw)
	})
}
