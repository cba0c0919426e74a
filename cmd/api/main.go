package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"franchise-dispatch-api/config"
	"franchise-dispatch-api/controllers"
	"franchise-dispatch-api/middleware"
	"franchise-dispatch-api/monitor"
	"franchise-dispatch-api/routes"
	"franchise-dispatch-api/services"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	logFile, _ := config.InitLogging()
	if logFile != nil {
		defer logFile.Close()
	}

	settings, err := config.LoadSettings()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	store, err := services.OpenStore(settings)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	app := services.NewApp(store, services.AppConfigFromSettings(settings))
	controllers.Use(app)

	// Set Gin mode
	if settings.GinMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	// Add security headers middleware
	router.Use(func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Next()
	})
	router.Use(middleware.CORSMiddleware(allowedOrigins()...))

	// Register monitor routes before the 404 catch-all in SetupRoutes
	monitor.RegisterLogsRoute(router, settings.LogsToken)
	monitor.RegisterSweepMonitor(router, app.Sweeps.Runs(), settings.LogsToken)

	routes.SetupRoutes(router, settings.JWTSecret)

	scheduler := services.NewScheduler(app.Sweeps, settings.Timezone)
	scheduler.Every(app.Transfer, settings.TransferInterval)
	scheduler.Every(app.Abandonment, settings.AbandonmentInterval)

	srv := &http.Server{
		Addr:              ":" + settings.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Printf("Server starting on port %s (store=%s, env=%s)", settings.ServerPort, settings.StoreDriver, settings.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return scheduler.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	app.Notifications.Wait()
	if err != nil {
		log.Fatalf("Server stopped: %v", err)
	}
	log.Println("Server stopped")
}

func allowedOrigins() []string {
	var origins []string
	for _, key := range []string{"MERCHANT_PORTAL_ORIGIN", "ADMIN_CONSOLE_ORIGIN"} {
		if v := os.Getenv(key); v != "" {
			origins = append(origins, v)
		}
	}
	return origins
}
