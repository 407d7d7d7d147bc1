package app

import (
	"log/slog"

	"github.com/relay-core/relay/internal/identity"
	"github.com/relay-core/relay/internal/observability"
	"github.com/relay-core/relay/internal/rbac"
	"github.com/relay-core/relay/internal/records"
	"github.com/relay-core/relay/internal/rpc"
)

// RegistryParams groups the services mounted on the dispatch tree.
type RegistryParams struct {
	Logger   *slog.Logger
	Metrics  *observability.Metrics
	Identity *identity.Service
	Records  *records.Service
	Checker  *rbac.Checker
}

// BuildRegistry assembles the procedure tree. Root-level stages run
// for every call; namespace stages only for calls below that mount.
func BuildRegistry(params RegistryParams) *rpc.Registry {
	root := rpc.NewRegistry()
	root.Use(CallLogging(params.Logger))
	if params.Metrics != nil {
		root.Use(params.Metrics.Middleware())
	}

	root.Mount("identity", identity.Routes(params.Identity))
	root.Mount("records", records.Routes(params.Records, params.Checker))
	return root
}
