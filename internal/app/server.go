package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"gomarket_import/config"
	"gomarket_import/internal/app/web"
	"gomarket_import/internal/core/models"
	"gomarket_import/internal/core/services"
	"gomarket_import/internal/core/storage"
	"gomarket_import/internal/importer"
	"gomarket_import/internal/onec"
	"gomarket_import/internal/ozon"
	"gomarket_import/internal/progress"
	"gomarket_import/internal/wildberries"
	"gomarket_import/internal/yandex"
	"gomarket_import/migrations/core"
	"gomarket_import/pkg/clients"
	"gomarket_import/pkg/dbconnect"
	"gomarket_import/pkg/dbconnect/migration"
	"gomarket_import/pkg/dbconnect/postgres"
	"gomarket_import/pkg/dbconnect/sqlite"
	"gomarket_import/pkg/logger"
)

const shutdownTimeout = 30 * time.Second

type ImportServer struct {
	config *config.AppConfig
	log    *logger.BaseLogger
	writer io.Writer
}

func NewImportServer(cfg *config.AppConfig, writer io.Writer) *ImportServer {
	return &ImportServer{config: cfg, log: logger.NewLogger(writer, "[ImportServer]"), writer: writer}
}

// Application -- собранный граф зависимостей поверх открытой БД.
type Application struct {
	DB       *sql.DB
	Tracker  *progress.Tracker
	Executor *importer.Executor
	Matcher  *services.NomenclatureMatcher
	Logs     *logger.SessionLogs
	Handler  http.Handler
}

func (s *ImportServer) connector() dbconnect.Database {
	if s.config.Database.Driver == config.DriverPostgres {
		return postgres.NewPgConnector(s.config.Database, s.log.WithPrefix("[postgres]"))
	}
	return sqlite.NewSQLiteConnector(s.config.Database)
}

// Build накатывает миграции, заводит подключения из конфига и собирает сервисы, провайдеры и роутер.
func (s *ImportServer) Build(ctx context.Context, db *sql.DB) (*Application, error) {
	if err := migration.Apply(db, core.All()...); err != nil {
		return nil, err
	}
	s.log.Log("core migrations applied successfully!")

	connections := storage.NewConnectionRepository(db)
	for _, c := range s.config.Connections {
		conn := models.Connection{
			ID:             c.ID,
			Name:           c.Name,
			Marketplace:    models.ParseMarketplace(c.Marketplace),
			MarketplaceID:  c.MarketplaceID,
			OrganizationID: c.OrganizationID,
			ClientID:       c.ClientID,
			APIKey:         c.Key(),
			CampaignID:     c.CampaignID,
			BaseURL:        c.BaseURL,
		}
		if err := connections.Upsert(ctx, conn); err != nil {
			return nil, err
		}
	}

	documents := storage.NewDocumentRepository(db)
	products := storage.NewProductRepository(db)
	barcodes := storage.NewBarcodeRepository(db)
	nomenclature := storage.NewNomenclatureRepository(db)

	svcLog := s.log.WithPrefix("[services]")
	posting := services.NewPostingService(documents, storage.NewSalesRegisterRepository(db), svcLog)
	store := services.NewDocumentStore(documents, storage.NewRawPayloadRepository(db), posting, svcLog)
	resolver := services.NewResolutionEngine(products, barcodes, svcLog)
	catalog := services.NewProductCatalog(products, barcodes, nomenclature, svcLog)

	logs, err := logger.NewSessionLogs(s.config.Import.LogDir, false)
	if err != nil {
		return nil, err
	}
	tracker := progress.NewTracker(s.log.WithPrefix("[progress]"))
	matcher := services.NewNomenclatureMatcher(products, nomenclature, tracker, s.log.WithPrefix("[match]"))

	base := clients.Settings{
		PageSize:          s.config.Import.PageSize,
		RequestsPerMinute: s.config.Import.RequestsPerMinute,
		MaxRetries:        uint64(s.config.Import.MaxRetries),
		Timeout:           s.config.Import.Timeout(),
	}
	ozonSettings := base
	ozonSettings.BaseURL = s.config.Ozon.BaseURL
	wbSettings := base
	wbSettings.BaseURL = s.config.Wildberries.StatisticsURL
	wbSettings.RequestsPerMinute = s.config.Wildberries.RequestsPerMinute
	ymSettings := base
	ymSettings.BaseURL = s.config.Yandex.BaseURL
	onecSettings := base
	onecSettings.BaseURL = s.config.OneC.BaseURL

	executor := importer.NewExecutor(connections, tracker, logs, s.log.WithPrefix("[import]"),
		ozon.NewProvider(ozonSettings, store, resolver, catalog),
		wildberries.NewProvider(wbSettings, store, resolver),
		yandex.NewProvider(ymSettings, s.config.Yandex.ReportEncoding, store, resolver),
		onec.NewProvider(onecSettings, s.config.OneC.User, s.config.OneC.Password, catalog),
	)

	webLog := s.log.WithPrefix("[web]")
	router := web.NewRouter(
		web.NewImportHandler(executor, tracker, logs, webLog),
		web.NewDocumentHandler(posting, matcher, webLog),
		db,
		web.Options{JWTSecret: s.config.Auth.JWTSecret, AllowedOrigins: s.config.Server.AllowedOrigins},
		webLog,
	)
	if s.config.Auth.JWTSecret == "" {
		s.log.Warn("JWT_SECRET is empty, API authorization is disabled")
	}

	return &Application{DB: db, Tracker: tracker, Executor: executor, Matcher: matcher, Logs: logs, Handler: router}, nil
}

// Run поднимает HTTP API и работает до отмены ctx. Запущенным импортам даётся shutdownTimeout
// на завершение.
func (s *ImportServer) Run(ctx context.Context) error {
	db, err := s.connector().Connect()
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close()

	application, err := s.Build(ctx, db)
	if err != nil {
		return err
	}

	cleanupCtx, stopCleanup := context.WithCancel(ctx)
	defer stopCleanup()
	go application.Tracker.Run(cleanupCtx, s.config.Import.CleanupEvery(), s.config.Import.Retention())

	server := &http.Server{
		Addr:              s.config.Server.Addr,
		Handler:           application.Handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		s.log.Log("import API listening on %s", s.config.Server.Addr)
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.log.Log("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		s.log.Warn("http shutdown: %v", err)
	}
	if err := application.Executor.Shutdown(shutdownCtx); err != nil {
		s.log.Warn("%v", err)
	}
	if err := application.Matcher.Shutdown(shutdownCtx); err != nil {
		s.log.Warn("%v", err)
	}
	_ = s.log.Sync()
	return nil
}

// ImportOnce выполняет один импорт синхронно, без HTTP. Используется из командной строки.
func (s *ImportServer) ImportOnce(ctx context.Context, req importer.Request) (progress.ImportProgress, error) {
	db, err := s.connector().Connect()
	if err != nil {
		return progress.ImportProgress{}, fmt.Errorf("connect database: %w", err)
	}
	defer db.Close()

	application, err := s.Build(ctx, db)
	if err != nil {
		return progress.ImportProgress{}, err
	}
	resp, err := application.Executor.ImportSync(ctx, req)
	if err != nil {
		return progress.ImportProgress{}, err
	}
	snapshot, _ := application.Tracker.GetProgress(resp.SessionID)
	return snapshot, nil
}
