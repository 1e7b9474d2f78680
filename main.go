package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	gmw "github.com/Laisky/gin-middlewares/v6"
	"github.com/Laisky/zap"
	"github.com/gin-gonic/gin"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nexusgate/nexusgate/common"
	"github.com/nexusgate/nexusgate/common/config"
	"github.com/nexusgate/nexusgate/common/graceful"
	"github.com/nexusgate/nexusgate/common/logger"
	"github.com/nexusgate/nexusgate/middleware"
	"github.com/nexusgate/nexusgate/model"
	"github.com/nexusgate/nexusgate/relay/controller"
	"github.com/nexusgate/nexusgate/router"
)

func main() {
	common.Init()

	if *common.PrintVersion {
		fmt.Println(common.Version)
		return
	}
	if *common.PrintHelp {
		fmt.Println("nexusgate [--port <port>] [--version] [--help]")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.SetupEnhancedLogger(ctx)
	logger.Logger.Info("nexusgate starting", zap.String("version", common.Version))

	if config.GinMode != gin.DebugMode {
		gin.SetMode(gin.ReleaseMode)
	}

	model.InitDB()

	authCache, err := model.NewAuthCache(config.AuthCacheCapacity)
	if err != nil {
		logger.Logger.Fatal("failed to build auth cache", zap.Error(err))
	}

	deps := controller.NewDeps(model.DB, authCache)

	telemetryCtx, telemetryCancel := context.WithCancel(context.Background())
	telemetryDone := make(chan struct{})
	go func() {
		deps.Dispatcher.Run(telemetryCtx)
		close(telemetryDone)
	}()

	server := gin.New()
	server.RedirectTrailingSlash = false
	server.Use(
		gin.Recovery(),
		gmw.NewLoggerMiddleware(
			gmw.WithLoggerMwColored(),
			gmw.WithLogger(logger.Logger.Named("gin")),
		),
		middleware.RequestTracker(),
	)

	server.GET("/metrics", middleware.MetricsAuth(), gin.WrapH(promhttp.Handler()))

	router.SetRouter(server, deps)

	port := config.ServerPort
	if port == "" {
		port = strconv.Itoa(*common.Port)
	}

	httpServer := &http.Server{
		Addr:    ":" + port,
		Handler: server,
	}

	go func() {
		logger.Logger.Info("server started", zap.String("address", "http://localhost:"+port))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Logger.Fatal("failed to start HTTP server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	stop()
	logger.Logger.Info("shutdown signal received, draining")
	graceful.SetDraining()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownDrainTimeout())
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Logger.Error("error shutting down HTTP server", zap.Error(err))
	}

	if err := graceful.Drain(shutdownCtx); err != nil {
		logger.Logger.Error("graceful drain did not complete before timeout", zap.Error(err))
	}

	telemetryCancel()
	select {
	case <-telemetryDone:
	case <-time.After(config.TelemetryDrainTimeout() + time.Second):
		logger.Logger.Error("telemetry dispatcher did not finish its final drain in time")
	}

	logger.Logger.Info("nexusgate stopped")
}
