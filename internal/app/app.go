package app

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"

	"github.com/niksmo/club-stock/config"
	"github.com/niksmo/club-stock/internal/adapter"
	"github.com/niksmo/club-stock/internal/adapter/httphandler"
	"github.com/niksmo/club-stock/internal/adapter/kafka"
	"github.com/niksmo/club-stock/internal/adapter/metrics"
	"github.com/niksmo/club-stock/internal/adapter/storage"
	"github.com/niksmo/club-stock/internal/core/service"
	"github.com/niksmo/club-stock/pkg/schema"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/pkg/sr"
)

type serdes struct {
	orderPlaced  schema.Serde
	stockChanged schema.Serde
}

type producers struct {
	stockChanged kafka.StockChangedProducer
}

type consumers struct {
	orders kafka.OrdersConsumer
}

type processors struct {
	stockSnapshot *kafka.StockSnapshotProcessor
}

type views struct {
	stockSnapshot kafka.StockSnapshotView
}

type App struct {
	ctx        context.Context
	cfg        config.Config
	tlsConfig  *tls.Config
	registry   *prometheus.Registry
	sqldb      storage.SQLDB
	serdes     serdes
	producers  producers
	consumers  consumers
	processors processors
	views      views
	service    service.Service
	httpServer httphandler.HTTPServer
	wg         sync.WaitGroup
}

func New(ctx context.Context, cfg config.Config) *App {
	app := &App{ctx: ctx, cfg: cfg}

	app.initLogger()
	app.initTLS()
	app.initMetrics()
	app.initSerdes()
	app.initStorage()
	app.initOutboundAdapters()
	app.initCoreService()
	app.initStreamAdapters()
	app.initInboundAdapters()

	return app
}

func (app *App) initLogger() {
	opts := &slog.HandlerOptions{Level: app.cfg.LogLevel}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, opts))
	slog.SetDefault(logger)
}

func (app *App) initTLS() {
	const op = "App.initTLS"

	t := app.cfg.Broker.TLS
	if !t.Enabled() {
		return
	}

	tlsConfig, err := adapter.MakeTLSConfig(t.CA, t.Cert, t.Key)
	if err != nil {
		app.fallDown(op, err)
	}
	app.tlsConfig = tlsConfig
	kafka.UseGokaTLS(tlsConfig)
}

func (app *App) initMetrics() {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	app.registry = reg
}

func (app *App) initSerdes() {
	const op = "App.initSerdes"
	ctx := app.ctx

	srOpts := []sr.ClientOpt{sr.URLs(app.cfg.Broker.SchemaRegistryURLs...)}
	if app.tlsConfig != nil {
		srOpts = append(srOpts, sr.DialTLSConfig(app.tlsConfig))
	}

	srClient, err := sr.NewClient(srOpts...)
	if err != nil {
		app.fallDown(op, err)
	}

	schemaCreater := schema.NewSchemaCreater(srClient)

	orderPlacedSS := app.cfg.Broker.Topics.OrdersPlaced + "-value"
	orderPlacedSerde, err := schema.NewSerdeOrderPlacedV1(
		ctx,
		schema.SubjectOpt(orderPlacedSS),
		schema.SchemaIdentifierOpt(schemaCreater),
	)
	if err != nil {
		app.fallDown(op, err)
	}

	stockChangedSS := app.cfg.Broker.Topics.StockChanged + "-value"
	stockChangedSerde, err := schema.NewSerdeStockChangedV1(
		ctx,
		schema.SubjectOpt(stockChangedSS),
		schema.SchemaIdentifierOpt(schemaCreater),
	)
	if err != nil {
		app.fallDown(op, err)
	}

	app.serdes.orderPlaced = orderPlacedSerde
	app.serdes.stockChanged = stockChangedSerde
}

func (app *App) initStorage() {
	const op = "App.initStorage"

	sqldb, err := storage.NewSQLDB(app.ctx, app.cfg.SQLDB)
	if err != nil {
		app.fallDown(op, err)
	}
	app.sqldb = sqldb
}

func (app *App) initOutboundAdapters() {
	const op = "App.initOutboundAdapters"

	stockChangedProducer, err := kafka.NewStockChangedProducer(
		kafka.ProducerClientOpt(
			app.ctx,
			app.cfg.Broker.SeedBrokers,
			app.cfg.Broker.Topics.StockChanged,
			app.kafkaTLSOpts()...,
		),
		kafka.ProducerEncoderOpt(app.serdes.stockChanged),
	)
	if err != nil {
		app.fallDown(op, err)
	}

	app.producers.stockChanged = stockChangedProducer
}

func (app *App) initCoreService() {
	repo := storage.NewProductsRepository(app.sqldb, app.cfg.MaxTxAttempts)
	app.service = service.New(
		repo,
		app.producers.stockChanged,
		metrics.NewLedgerMetrics(app.registry),
	)
}

func (app *App) initStreamAdapters() {
	const op = "App.initStreamAdapters"

	seedBrokers := app.cfg.Broker.SeedBrokers
	snapshotGroup := app.cfg.Broker.Consumers.StockSnapshotGroup

	ordersConsumer, err := kafka.NewOrdersConsumer(
		kafka.ConsumerClientOpt(
			seedBrokers,
			app.cfg.Broker.Topics.OrdersPlaced,
			app.cfg.Broker.Consumers.StockReducerGroup,
			app.kafkaTLSOpts()...,
		),
		kafka.ConsumerDecoderOpt(app.serdes.orderPlaced),
		kafka.OrdersConsumerReducerOpt(app.service),
	)
	if err != nil {
		app.fallDown(op, err)
	}

	snapshotProc, err := kafka.NewStockSnapshotProc(
		seedBrokers,
		app.cfg.Broker.Topics.StockChanged,
		snapshotGroup,
		app.serdes.stockChanged,
	)
	if err != nil {
		app.fallDown(op, err)
	}

	snapshotView, err := kafka.NewStockSnapshotView(
		seedBrokers, snapshotGroup, app.serdes.stockChanged,
	)
	if err != nil {
		app.fallDown(op, err)
	}

	app.consumers.orders = ordersConsumer
	app.processors.stockSnapshot = snapshotProc
	app.views.stockSnapshot = snapshotView
}

func (app *App) initInboundAdapters() {
	mux := http.NewServeMux()
	httphandler.RegisterInventory(mux, app.service)
	httphandler.RegisterCheckout(mux, app.service)
	httphandler.RegisterStock(mux, app.views.stockSnapshot)
	mux.Handle("GET /metrics", promhttp.HandlerFor(
		app.registry, promhttp.HandlerOpts{Registry: app.registry},
	))

	handler := httphandler.AllowJSON(mux)
	app.httpServer = httphandler.NewHTTPServer(
		app.cfg.HTTPServerAddr, handler, app.cfg.HTTPRequestTimeout,
	)
}

func (app *App) kafkaTLSOpts() []kgo.Opt {
	return kafka.TLSOpts(app.tlsConfig)
}

func (app *App) Run(stopFn context.CancelFunc) {
	ctx := app.ctx

	app.wg.Add(1)
	go app.processors.stockSnapshot.Run(ctx, stopFn, &app.wg)

	go app.views.stockSnapshot.Run(ctx)
	go app.consumers.orders.Run(ctx)

	app.wg.Wait()

	go app.httpServer.Run(stopFn)

	slog.Info("application is running")
}

func (app *App) Close(ctx context.Context) {
	slog.Info("application is closing...")

	app.httpServer.Close(ctx)
	app.consumers.orders.Close()
	app.processors.stockSnapshot.Close()
	app.producers.stockChanged.Close()
	app.sqldb.Close()

	slog.Info("application is closed")
}

func (app *App) fallDown(op string, err error) {
	panic(fmt.Errorf("%s: %w", op, err))
}
