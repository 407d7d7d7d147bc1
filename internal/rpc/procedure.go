package rpc

import (
	"context"
	"encoding/json"
)

// ProcedureKind separates read-only queries from mutations.
type ProcedureKind string

const (
	// ProcedureQuery marks a read-only procedure.
	ProcedureQuery ProcedureKind = "query"
	// ProcedureMutation marks a state-changing procedure.
	ProcedureMutation ProcedureKind = "mutation"
)

// Handler is the business entry point for a public procedure.
type Handler[In, Out any] func(ctx context.Context, call Ctx, in In) (Out, error)

// GuardedHandler receives the narrowed context; it can rely on the
// identity being present and active.
type GuardedHandler[In, Out any] func(ctx context.Context, call AuthCtx, in In) (Out, error)

// Procedure binds an input contract, an output contract, a middleware
// set and a handler into one dispatchable unit. Procedures are built at
// startup and immutable afterwards.
type Procedure struct {
	name    string
	kind    ProcedureKind
	guarded bool
	stages  []Middleware
	invoke  func(json.RawMessage) Next
}

// Name returns the procedure name within its registry node.
func (p *Procedure) Name() string { return p.name }

// Kind reports whether the procedure is a query or a mutation.
func (p *Procedure) Kind() ProcedureKind { return p.kind }

// Guarded reports whether RequireAuth is part of the procedure's chain.
func (p *Procedure) Guarded() bool { return p.guarded }

// Option customises a procedure at construction time.
type Option func(*Procedure)

// WithMiddleware appends stages to the procedure's chain. Stages run
// after auth enforcement for guarded procedures.
func WithMiddleware(stages ...Middleware) Option {
	return func(p *Procedure) {
		p.stages = append(p.stages, stages...)
	}
}

// Query builds a public read-only procedure.
func Query[In, Out any](name string, h Handler[In, Out], opts ...Option) *Procedure {
	return build(name, ProcedureQuery, false, publicInvoke(h), opts)
}

// Mutation builds a public state-changing procedure.
func Mutation[In, Out any](name string, h Handler[In, Out], opts ...Option) *Procedure {
	return build(name, ProcedureMutation, false, publicInvoke(h), opts)
}

// GuardedQuery builds a read-only procedure behind auth enforcement.
func GuardedQuery[In, Out any](name string, h GuardedHandler[In, Out], opts ...Option) *Procedure {
	return build(name, ProcedureQuery, true, guardedInvoke(h), opts)
}

// GuardedMutation builds a mutation behind auth enforcement.
func GuardedMutation[In, Out any](name string, h GuardedHandler[In, Out], opts ...Option) *Procedure {
	return build(name, ProcedureMutation, true, guardedInvoke(h), opts)
}

func build(name string, kind ProcedureKind, guarded bool, invoke func(json.RawMessage) Next, opts []Option) *Procedure {
	if name == "" {
		panic("rpc: procedure name required")
	}
	p := &Procedure{name: name, kind: kind, guarded: guarded, invoke: invoke}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Call validates the raw input, runs the middleware chain and handler,
// and validates the output. Dispatch itself performs no I/O.
func (p *Procedure) Call(ctx context.Context, call Ctx, raw json.RawMessage) (any, error) {
	stages := p.stages
	if p.guarded {
		stages = append([]Middleware{RequireAuth}, stages...)
	}
	return Chain(stages...)(ctx, call, p.invoke(raw))
}

func publicInvoke[In, Out any](h Handler[In, Out]) func(json.RawMessage) Next {
	return func(raw json.RawMessage) Next {
		return func(ctx context.Context, call Ctx) (any, error) {
			var in In
			if verr := decodeStrict(raw, &in); verr != nil {
				return nil, verr
			}
			if verr := checkInput(in); verr != nil {
				return nil, verr
			}
			out, err := h(ctx, call, in)
			if err != nil {
				return nil, err
			}
			if verr := checkOutput(out); verr != nil {
				return nil, verr
			}
			return out, nil
		}
	}
}

func guardedInvoke[In, Out any](h GuardedHandler[In, Out]) func(json.RawMessage) Next {
	return func(raw json.RawMessage) Next {
		return func(ctx context.Context, call Ctx) (any, error) {
			authCall, verr := narrow(call)
			if verr != nil {
				return nil, verr
			}
			var in In
			if verr := decodeStrict(raw, &in); verr != nil {
				return nil, verr
			}
			if verr := checkInput(in); verr != nil {
				return nil, verr
			}
			out, err := h(ctx, authCall, in)
			if err != nil {
				return nil, err
			}
			if verr := checkOutput(out); verr != nil {
				return nil, verr
			}
			return out, nil
		}
	}
}
