package rpc

// Auth describes the authenticated actor attached to a call.
type Auth struct {
	UserID int64
	Roles  []string
	Active bool
}

// Ctx is the per-call context built from transport request metadata.
// It is created fresh for every call, never mutated and never shared
// across calls. A nil auth marks the unauthenticated variant.
type Ctx struct {
	RequestID string
	// Procedure is the dotted name being dispatched, set by the
	// registry before any stage runs. Empty outside dispatch.
	Procedure string
	auth      *Auth
}

// NewCtx builds an unauthenticated call context.
func NewCtx(requestID string) Ctx {
	return Ctx{RequestID: requestID}
}

// NewAuthenticatedCtx builds a call context carrying an identity.
func NewAuthenticatedCtx(requestID string, auth Auth) Ctx {
	return Ctx{RequestID: requestID, auth: &auth}
}

// Auth returns the identity when the call is authenticated.
func (c Ctx) Auth() (Auth, bool) {
	if c.auth == nil {
		return Auth{}, false
	}
	return *c.auth, true
}

// Authenticated reports whether the call carries an identity.
func (c Ctx) Authenticated() bool {
	return c.auth != nil
}

// AuthCtx is the narrowed context handed to guarded handlers. Identity
// is a value field, so code receiving an AuthCtx cannot observe a
// missing identity; only the enforcement path constructs one.
type AuthCtx struct {
	Ctx
	Identity Auth
}

// narrow converts a Ctx into an AuthCtx. It is called after RequireAuth
// has run, so a missing identity here is a wiring defect.
func narrow(c Ctx) (AuthCtx, *Error) {
	auth, ok := c.Auth()
	if !ok {
		return AuthCtx{}, Internal("guarded procedure dispatched without identity")
	}
	return AuthCtx{Ctx: c, Identity: auth}, nil
}
