package fx

import (
	"os"
	"scorepad/internal/catalog"
	"scorepad/internal/cli"
	"scorepad/internal/config"
	"scorepad/internal/database"
	"scorepad/internal/export"
	"scorepad/internal/logger"
	"scorepad/internal/repository"
	"scorepad/internal/service"
	"scorepad/internal/store"

	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

// ProvideConfig loads the configuration with a bootstrap logger; the
// application logger is built from the loaded LOG_LEVEL afterwards.
func ProvideConfig() (*config.Config, error) {
	return config.Load(logger.Bootstrap())
}

func ProvideKV(repo *repository.KVRepository) store.KV {
	return repo
}

func ProvideSessionStore(kv store.KV, logger zerolog.Logger) *store.SessionStore {
	return store.NewSessionStore(kv, logger)
}

func ProvideCatalog(c *catalog.Catalog) service.Catalog {
	return c
}

func ProvideRenderer() export.Renderer {
	return export.NewXLSXRenderer()
}

func ProvideExportService(sessions *service.SessionService, st *store.SessionStore, renderer export.Renderer, c *catalog.Catalog, logger zerolog.Logger) *service.ExportService {
	return service.NewExportService(sessions, st, renderer, c.Site().SiteName, logger)
}

func ProvideApp(sessions *service.SessionService, exports *service.ExportService, c *catalog.Catalog, cfg *config.Config, logger zerolog.Logger) *cli.App {
	return cli.NewApp(sessions, exports, c, cfg, logger, os.Stdout)
}

var Module = fx.Options(
	fx.Provide(ProvideConfig),
	logger.Module,
	fx.Provide(database.New),
	fx.Provide(catalog.NewFromConfig),
	// storage
	fx.Provide(repository.NewKVRepository),
	fx.Provide(ProvideKV),
	fx.Provide(ProvideSessionStore),
	// svc
	fx.Provide(ProvideCatalog),
	fx.Provide(service.NewSessionService),
	fx.Provide(ProvideRenderer),
	fx.Provide(ProvideExportService),
	// cli
	fx.Provide(ProvideApp),
)
