package http

import (
	natsadapter "github.com/nlzhang/geopin/internal/adapters/nats"
	"github.com/nlzhang/geopin/internal/adapters/sqlitekv"
	"github.com/nlzhang/geopin/internal/adapters/valkey"
	"github.com/nlzhang/geopin/internal/core/ports"
	"github.com/nlzhang/geopin/internal/core/usecases"
)

// Dependencies holds all services needed by HTTP handlers. Helper, Events,
// Store, and Cache are only consulted by the readiness probe; everything
// else goes through the services.
type Dependencies struct {
	Engine  *usecases.SpoofingEngine
	History *usecases.HistoryService
	Search  *usecases.SearchService
	Helper  ports.HelperChannel
	Store   *sqlitekv.Store
	Cache   *valkey.Cache
	Events  *natsadapter.Publisher
}
