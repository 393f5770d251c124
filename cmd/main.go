package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/random"
	"github.com/schollz/progressbar/v3"

	"github.com/jwashb22/saas-analytics-pipeline/internal/analytics"
	"github.com/jwashb22/saas-analytics-pipeline/internal/caching"
	"github.com/jwashb22/saas-analytics-pipeline/internal/config"
	"github.com/jwashb22/saas-analytics-pipeline/internal/etl"
	"github.com/jwashb22/saas-analytics-pipeline/internal/handlers"
	"github.com/jwashb22/saas-analytics-pipeline/internal/jobs/background"
	"github.com/jwashb22/saas-analytics-pipeline/internal/middleware"
	"github.com/jwashb22/saas-analytics-pipeline/internal/migrations"
	"github.com/jwashb22/saas-analytics-pipeline/internal/models"
	"github.com/jwashb22/saas-analytics-pipeline/internal/pipeline"
	"github.com/jwashb22/saas-analytics-pipeline/internal/repositories"
	"github.com/jwashb22/saas-analytics-pipeline/internal/services"
	"github.com/jwashb22/saas-analytics-pipeline/pkg/database"
)

const version = "1.0.0"

func main() {
	mode := flag.String("mode", "all", "pipeline mode: generate | load | check | serve | all")
	configPath := flag.String("config", "", "optional TOML simulation config")
	customers := flag.Int("customers", 0, "override customer count")
	months := flag.Int("months", 0, "override simulated months")
	seed := flag.Int64("seed", 0, "override random seed")
	outputDir := flag.String("output", "", "override CSV output directory")
	upload := flag.Bool("upload", false, "upload the CSV export to object storage")
	regenEvery := flag.Duration("regen-every", 0, "serve mode: regenerate the dataset at this interval (0 disables)")
	flag.Parse()

	appCfg := config.LoadApp()
	if *outputDir != "" {
		appCfg.OutputDir = *outputDir
	}

	simCfg, err := loadSimulationConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load simulation config: %v", err)
	}
	if *customers > 0 {
		simCfg.Customers = *customers
	}
	if *months > 0 {
		simCfg.Months = *months
	}
	if *seed != 0 {
		simCfg.Seed = *seed
	}
	if err := simCfg.Validate(); err != nil {
		log.Fatalf("Invalid simulation config: %v", err)
	}

	switch *mode {
	case "generate":
		runGenerate(appCfg, simCfg, *upload)
	case "load":
		runLoad(appCfg)
	case "check":
		runCheck(appCfg)
	case "serve":
		runServe(appCfg, simCfg, *regenEvery)
	case "all":
		runAll(appCfg, simCfg, *upload)
	default:
		fmt.Fprintf(os.Stderr, "unknown mode %q\n", *mode)
		flag.Usage()
		os.Exit(2)
	}
}

func loadSimulationConfig(path string) (*config.SimulationConfig, error) {
	if path == "" {
		return config.DefaultSimulation(), nil
	}
	return config.LoadSimulation(path)
}

// runGenerate simulates the dataset and writes the CSV export, without
// touching the warehouse.
func runGenerate(appCfg *config.AppConfig, simCfg *config.SimulationConfig, upload bool) {
	ctx := context.Background()

	exportSvc, err := buildExportService(ctx, appCfg, upload)
	if err != nil {
		log.Fatalf("Failed to initialize export service: %v", err)
	}

	pipelineSvc := pipeline.NewPipelineService(simCfg, exportSvc, nil, nil, analytics.NewSummaryService(nil), nil)
	attachProgressBar(pipelineSvc, simCfg.Months)

	opts := pipeline.Options{ExportDir: appCfg.OutputDir}
	if upload {
		opts.UploadBucket = appCfg.MinioBucket
	}

	summary, err := pipelineSvc.Execute(ctx, uuid.New().String(), opts)
	if err != nil {
		log.Fatalf("Generation failed: %v", err)
	}
	printSummary(summary)
}

// runLoad migrates the warehouse schema and loads a previously exported CSV
// directory into it.
func runLoad(appCfg *config.AppConfig) {
	ctx := context.Background()

	pool := mustConnect(ctx, appCfg)
	defer pool.Close()

	loader := etl.NewWarehouseLoader(
		repositories.NewDimensionRepo(pool),
		repositories.NewFactRepo(pool),
	)
	if err := loader.LoadFromDir(ctx, appCfg.OutputDir); err != nil {
		log.Fatalf("Warehouse load failed: %v", err)
	}
	log.Printf("Warehouse load from %s completed", appCfg.OutputDir)
}

// runCheck runs the data quality suite against the loaded warehouse and
// exits nonzero when any check fails.
func runCheck(appCfg *config.AppConfig) {
	ctx := context.Background()

	pool := mustConnect(ctx, appCfg)
	defer pool.Close()

	checker := etl.NewDataQualityChecker(pool)
	results, err := checker.RunAll(ctx)
	if err != nil {
		log.Fatalf("Data quality checks failed to run: %v", err)
	}

	for _, r := range results {
		status := "PASS"
		if !r.Passed {
			status = fmt.Sprintf("FAIL (%d issues)", r.Issues)
		}
		log.Printf("%-45s %s", r.Name, status)
	}

	if !etl.AllPassed(results) {
		log.Println("Data quality checks FAILED")
		os.Exit(1)
	}
	log.Println("All data quality checks passed")
}

// runAll executes the full pipeline: generate, export, load, check.
func runAll(appCfg *config.AppConfig, simCfg *config.SimulationConfig, upload bool) {
	ctx := context.Background()

	pool := mustConnect(ctx, appCfg)
	defer pool.Close()

	exportSvc, err := buildExportService(ctx, appCfg, upload)
	if err != nil {
		log.Fatalf("Failed to initialize export service: %v", err)
	}

	loader := etl.NewWarehouseLoader(
		repositories.NewDimensionRepo(pool),
		repositories.NewFactRepo(pool),
	)
	checker := etl.NewDataQualityChecker(pool)

	pipelineSvc := pipeline.NewPipelineService(simCfg, exportSvc, loader, checker, analytics.NewSummaryService(nil), nil)
	attachProgressBar(pipelineSvc, simCfg.Months)

	opts := pipeline.Options{
		ExportDir:     appCfg.OutputDir,
		LoadWarehouse: true,
		RunChecks:     true,
	}
	if upload {
		opts.UploadBucket = appCfg.MinioBucket
	}

	summary, err := pipelineSvc.Execute(ctx, uuid.New().String(), opts)
	if err != nil {
		log.Fatalf("Pipeline failed: %v", err)
	}
	printSummary(summary)
}

// runServe exposes the pipeline over HTTP with a background scheduler.
func runServe(appCfg *config.AppConfig, simCfg *config.SimulationConfig, regenEvery time.Duration) {
	ctx := context.Background()

	pool := mustConnect(ctx, appCfg)
	defer pool.Close()

	jwtSecret := appCfg.APISecret
	if jwtSecret == "" {
		jwtSecret = random.String(32)
		log.Printf("WARNING: Using generated API secret: %s", jwtSecret)
	}

	cacheSvc := caching.NewRedisCacheService(appCfg.RedisAddr, appCfg.RedisPassword, appCfg.RedisDB)
	summarySvc := analytics.NewSummaryService(cacheSvc)

	exportSvc, err := buildExportService(ctx, appCfg, true)
	if err != nil {
		log.Printf("WARNING: object storage unavailable, uploads disabled: %v", err)
		exportSvc = services.NewExportService(nil)
	}

	loader := etl.NewWarehouseLoader(
		repositories.NewDimensionRepo(pool),
		repositories.NewFactRepo(pool),
	)
	checker := etl.NewDataQualityChecker(pool)
	pipelineSvc := pipeline.NewPipelineService(simCfg, exportSvc, loader, checker, summarySvc, cacheSvc)

	scheduler := background.NewJobScheduler(pipelineSvc, appCfg.OutputDir, regenEvery)
	if err := scheduler.Start(); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}
	defer scheduler.Stop()

	healthHandlers := handlers.NewHealthHandlers(pool, cacheSvc.Ping)
	pipelineHandlers := handlers.NewPipelineHandlers(pipelineSvc, summarySvc, appCfg.OutputDir, appCfg.MinioBucket)

	e := echo.New()
	e.Use(echoMiddleware.Logger())
	e.Use(echoMiddleware.Recover())
	e.Use(echoMiddleware.CORS())
	e.Use(echoMiddleware.RemoveTrailingSlash())

	e.GET("/health", healthHandlers.HealthCheck)

	v1 := e.Group("/api/v1")
	v1.Use(middleware.VersionHeader("v1"))
	v1.GET("/summary", pipelineHandlers.GetSummary)
	v1.GET("/runs/:id", pipelineHandlers.GetRunStatus)

	protected := v1.Group("")
	protected.Use(echojwt.WithConfig(echojwt.Config{
		SigningKey: []byte(jwtSecret),
		ErrorHandler: func(c echo.Context, err error) error {
			return echo.NewHTTPError(401, "Invalid token")
		},
	}))
	protected.POST("/runs", pipelineHandlers.CreateRun)

	log.Printf("saas-analytics-pipeline server v%s starting on %s", version, appCfg.ListenAddr)
	e.Logger.Fatal(e.Start(appCfg.ListenAddr))
}

// mustConnect migrates the warehouse schema and returns a verified pool.
func mustConnect(ctx context.Context, appCfg *config.AppConfig) *pgxpool.Pool {
	if err := appCfg.RequireDatabase(); err != nil {
		log.Fatal(err)
	}

	migrationDB, err := sql.Open("pgx", appCfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to open database for migrations: %v", err)
	}
	if err := migrations.Up(migrationDB); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	migrationDB.Close()

	pool, err := database.NewPool(ctx, appCfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	return pool
}

// buildExportService wires MinIO only when uploads are requested.
func buildExportService(ctx context.Context, appCfg *config.AppConfig, withUpload bool) (*services.ExportService, error) {
	if !withUpload {
		return services.NewExportService(nil), nil
	}

	minioSvc, err := services.NewMinioService(appCfg.MinioEndpoint, appCfg.MinioAccessKey, appCfg.MinioSecretKey, appCfg.MinioUseSSL)
	if err != nil {
		return nil, err
	}
	if err := minioSvc.EnsureBucketExists(ctx, appCfg.MinioBucket); err != nil {
		return nil, err
	}
	return services.NewExportService(minioSvc), nil
}

func attachProgressBar(p *pipeline.PipelineService, months int) {
	bar := progressbar.Default(int64(months), "simulating")
	p.OnMonth = func(month, total int) {
		bar.Add(1)
	}
}

func printSummary(summary *models.SimulationSummary) {
	if summary == nil {
		return
	}
	log.Printf("customers: %d (churned %d, retention %.1f%%)", summary.TotalCustomers, summary.ChurnedCustomers, summary.RetentionRate)
	log.Printf("usage events: %d, billing transactions: %d", summary.TotalUsageEvents, summary.TotalBillingTransactions)
	log.Printf("total revenue: $%.2f, final MRR: $%.2f", summary.TotalRevenue, summary.FinalMRR)
	for plan, count := range summary.PlanDistribution {
		log.Printf("  plan %-12s %d active", plan, count)
	}
}
