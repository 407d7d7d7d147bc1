package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/unrolled/secure"

	"github.com/relay-core/relay/internal/rpc"
)

// MiddlewareConfig aggregates dependencies shared by the middleware stack.
type MiddlewareConfig struct {
	Logger *slog.Logger
	Config *Config
}

// MiddlewareStack installs the Relay HTTP middleware chain.
func MiddlewareStack(cfg MiddlewareConfig) []func(http.Handler) http.Handler {
	secureMiddleware := secure.New(secure.Options{
		FrameDeny:          true,
		ContentTypeNosniff: true,
		BrowserXssFilter:   true,
		ReferrerPolicy:     "strict-origin-when-cross-origin",
		SSLRedirect:        cfg.Config.IsProduction(),
		SSLProxyHeaders:    map[string]string{"X-Forwarded-Proto": "https"},
	})

	timeout := 30 * time.Second
	if cfg.Config != nil && cfg.Config.AppRequestTimeout > 0 {
		timeout = cfg.Config.AppRequestTimeout
	}

	return []func(http.Handler) http.Handler{
		middleware.RealIP,
		middleware.RequestID,
		middleware.Recoverer,
		middleware.Timeout(timeout),
		func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if err := secureMiddleware.Process(w, r); err != nil {
					cfg.Logger.Warn("secure headers blocked request", slog.Any("error", err))
					http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
					return
				}
				next.ServeHTTP(w, r)
			})
		},
		middleware.Compress(5),
		httprate.Limit(120, time.Minute, httprate.WithKeyFuncs(httprate.KeyByIP)),
	}
}

// CallLogging observes every dispatched procedure with its outcome and
// latency. It never alters the result.
func CallLogging(logger *slog.Logger) rpc.Middleware {
	return func(ctx context.Context, call rpc.Ctx, next rpc.Next) (any, error) {
		start := time.Now()
		out, err := next(ctx, call)
		attrs := []slog.Attr{
			slog.String("procedure", call.Procedure),
			slog.String("request_id", call.RequestID),
			slog.Duration("duration", time.Since(start)),
		}
		if auth, ok := call.Auth(); ok {
			attrs = append(attrs, slog.Int64("actor_id", auth.UserID))
		}
		if err != nil {
			var domainErr *rpc.Error
			if errors.As(err, &domainErr) {
				attrs = append(attrs, slog.String("kind", string(domainErr.Kind)))
			}
			attrs = append(attrs, slog.Any("error", err))
			logger.LogAttrs(ctx, slog.LevelWarn, "rpc call failed", attrs...)
			return out, err
		}
		logger.LogAttrs(ctx, slog.LevelInfo, "rpc call", attrs...)
		return out, err
	}
}
