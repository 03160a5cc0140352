package entrypoint

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/bookexport/internal/applebooks"
	"github.com/mrlokans/bookexport/internal/config"
	"github.com/mrlokans/bookexport/internal/database"
	"github.com/mrlokans/bookexport/internal/exporters"
	http_controllers "github.com/mrlokans/bookexport/internal/http"
	"github.com/mrlokans/bookexport/internal/kindle"
	"github.com/mrlokans/bookexport/internal/merge"
	"github.com/mrlokans/bookexport/internal/pipeline"
	"github.com/mrlokans/bookexport/internal/scheduler"
)

// ShutdownFunc is called during graceful shutdown to clean up resources.
type ShutdownFunc func(ctx context.Context)

// Run starts the HTTP API over the stored library, plus the scheduled
// re-export when enabled.
func Run(cfg *config.Config, version string) {
	log.Printf("Starting bookexport v%s", version)

	db, err := database.NewDatabase(cfg.Database.Path)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Printf("Error closing database: %v", err)
		}
	}()

	router := http_controllers.NewRouter(http_controllers.RouterConfig{
		Database: db,
		Version:  version,
	})

	var sched *scheduler.ExportSyncScheduler
	if cfg.ExportSync.Enabled {
		sched = scheduler.NewExportSyncScheduler(cfg.ExportSync.Schedule, syncJob(cfg, db))
		if err := sched.Start(context.Background()); err != nil {
			log.Fatalf("Failed to start export sync scheduler: %v", err)
		}
	} else {
		log.Printf("Export sync scheduler: disabled")
	}

	Serve(router, cfg, func(ctx context.Context) {
		if sched != nil {
			sched.Stop()
		}
	})
}

// syncJob re-extracts the sources that work unattended. The browser-driven
// Kindle notebook sync needs a human for login and stays out of scheduled
// runs.
func syncJob(cfg *config.Config, db *database.Database) scheduler.SyncJob {
	return func(ctx context.Context) error {
		var extractors []pipeline.Extractor

		if cfg.Kindle.ClippingsPath != "" {
			extractors = append(extractors, kindle.NewClippingsExtractor(cfg.Kindle.ClippingsPath))
		}

		if reader, err := applebooks.NewReader(cfg.AppleBooks.AnnotationDBPath, cfg.AppleBooks.BookDBPath); err == nil {
			extractors = append(extractors, reader)
		} else {
			log.Printf("export sync: Apple Books unavailable: %v", err)
		}

		if len(extractors) == 0 {
			return fmt.Errorf("no non-interactive sources configured")
		}

		results := pipeline.Run(ctx, extractors...)
		for _, result := range results {
			if result.Err != nil {
				log.Printf("export sync: source %s failed: %v", result.Name, result.Err)
			}
		}

		books, err := merge.Merge(pipeline.Records(results))
		if err != nil {
			return err
		}
		library := merge.Assemble(books, time.Now())

		if err := exporters.NewJSONExporter(cfg.Output.Pretty).WriteFile(cfg.Output.Path, library); err != nil {
			return err
		}
		return db.SaveLibrary(library)
	}
}

// Serve runs the HTTP server until SIGINT/SIGTERM, then shuts down within
// the configured timeout.
func Serve(router *gin.Engine, cfg *config.Config, onShutdown ShutdownFunc) {
	timeout := time.Duration(cfg.Global.ShutdownTimeoutInSeconds) * time.Second

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler: router,
	}

	go func() {
		log.Printf("Starting server at %s:%d", cfg.HTTP.Host, cfg.HTTP.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Printf("Shutdown Server, waiting %v before killing\n", timeout)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if onShutdown != nil {
		onShutdown(ctx)
	}

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server Shutdown:", err)
	}

	log.Println("Server exiting")
}
