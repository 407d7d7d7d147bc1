package app

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/relay-core/relay/internal/identity"
	"github.com/relay-core/relay/internal/observability"
	"github.com/relay-core/relay/internal/platform/httpx"
	"github.com/relay-core/relay/internal/rpc"
	"github.com/relay-core/relay/jobs"
)

// maxBodyBytes bounds the size of a single RPC request body.
const maxBodyBytes = 1 << 20

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger   *slog.Logger
	Config   *Config
	Builder  *identity.Builder
	Registry *rpc.Registry
	Mapper   *rpc.ErrorMapper
	Metrics  *observability.Metrics
	Jobs     *jobs.Handler
}

// NewRouter constructs the chi.Router exposing the dispatch pipeline.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger: params.Logger,
		Config: params.Config,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	if params.Jobs != nil {
		r.Route("/jobs", params.Jobs.MountRoutes)
	}

	r.Post("/rpc/{procedure}", func(w http.ResponseWriter, req *http.Request) {
		ctx := req.Context()
		requestID := chimw.GetReqID(ctx)
		call := params.Builder.Build(ctx, requestID, bearerToken(req))

		raw, err := io.ReadAll(io.LimitReader(req.Body, maxBodyBytes))
		if err != nil {
			httpx.Fail(w, params.Mapper.Map(rpc.Validation("request body unreadable"), call))
			return
		}
		if len(raw) == 0 {
			raw = []byte(`{}`)
		}

		name := chi.URLParam(req, "procedure")
		result, err := params.Registry.Dispatch(ctx, name, json.RawMessage(raw), call)
		if err != nil {
			httpx.Fail(w, params.Mapper.Map(err, call))
			return
		}
		httpx.OK(w, result)
	})

	return r
}

// bearerToken extracts a bearer credential from the Authorization
// header. Missing or malformed headers yield an empty token, which the
// identity builder treats as an unauthenticated call.
func bearerToken(req *http.Request) string {
	header := req.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
