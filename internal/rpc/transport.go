package rpc

import (
	"errors"
	"fmt"
	"log/slog"
)

// Transport error codes exposed to the wire layer.
const (
	CodeUnauthorized = "UNAUTHORIZED"
	CodeForbidden    = "FORBIDDEN"
	CodeNotFound     = "NOT_FOUND"
	CodeBadRequest   = "BAD_REQUEST"
	CodeConflict     = "CONFLICT"
	CodeInternal     = "INTERNAL"
)

// redactedMessage replaces internal detail in production responses.
const redactedMessage = "internal error"

// TransportError is the only error shape allowed past the dispatch
// boundary. No layer other than the ErrorMapper may construct one from
// a domain error.
type TransportError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Meta    map[string]any `json:"meta,omitempty"`
}

// Error implements the error interface.
func (e TransportError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// kindCodes is the total mapping from domain kinds to transport codes.
// init verifies it covers every declared kind so that adding a kind
// without a code fails at startup rather than falling back silently.
var kindCodes = map[ErrorKind]string{
	KindNotFound:     CodeNotFound,
	KindValidation:   CodeBadRequest,
	KindUnauthorized: CodeUnauthorized,
	KindForbidden:    CodeForbidden,
	KindConflict:     CodeConflict,
	KindInternal:     CodeInternal,
}

func init() {
	for _, kind := range Kinds() {
		if _, ok := kindCodes[kind]; !ok {
			panic(fmt.Sprintf("rpc: error kind %q has no transport code", kind))
		}
	}
	if len(kindCodes) != len(Kinds()) {
		panic("rpc: transport code table does not match declared kinds")
	}
}

// CodeFor returns the transport code for a domain kind. Unknown kinds
// map to CodeInternal; the init check makes that unreachable for the
// declared set.
func CodeFor(kind ErrorKind) string {
	if code, ok := kindCodes[kind]; ok {
		return code
	}
	return CodeInternal
}

// ErrorMapper translates errors at the transport boundary. In
// production mode internal messages are redacted while the code and
// correlation metadata are preserved for observability.
type ErrorMapper struct {
	logger     *slog.Logger
	production bool
}

// NewErrorMapper constructs an ErrorMapper.
func NewErrorMapper(logger *slog.Logger, production bool) *ErrorMapper {
	return &ErrorMapper{logger: logger, production: production}
}

// Map translates any error into a TransportError.
func (m *ErrorMapper) Map(err error, call Ctx) TransportError {
	var transport TransportError
	if errors.As(err, &transport) {
		return transport
	}

	var domain *Error
	if errors.As(err, &domain) {
		out := TransportError{
			Code:    kindCodes[domain.Kind],
			Message: domain.Message,
			Meta:    correlate(domain.Meta, call),
		}
		if m.production && domain.Kind == KindInternal {
			out.Message = redactedMessage
		}
		return out
	}

	if m.logger != nil {
		m.logger.Error("unexpected error at transport boundary",
			slog.String("request_id", call.RequestID),
			slog.Any("error", err))
	}
	out := TransportError{
		Code:    CodeInternal,
		Message: redactedMessage,
		Meta:    correlate(nil, call),
	}
	if !m.production && err != nil {
		out.Message = err.Error()
	}
	return out
}

// correlate attaches request and actor identifiers. These are never
// redacted; operators rely on them.
func correlate(meta map[string]any, call Ctx) map[string]any {
	out := make(map[string]any, len(meta)+2)
	for k, v := range meta {
		out[k] = v
	}
	if call.RequestID != "" {
		out["request_id"] = call.RequestID
	}
	if auth, ok := call.Auth(); ok {
		out["actor_id"] = auth.UserID
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
