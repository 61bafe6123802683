package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/agentkube/clustercore/internal/config"
	"github.com/agentkube/clustercore/internal/wsapi"
	"github.com/agentkube/clustercore/pkg/appdir"
	"github.com/agentkube/clustercore/pkg/clusterregistry"
	"github.com/agentkube/clustercore/pkg/clustersource"
	"github.com/agentkube/clustercore/pkg/discoverycache"
	"github.com/agentkube/clustercore/pkg/kubeconfig"
	"github.com/agentkube/clustercore/pkg/logger"
	"github.com/agentkube/clustercore/pkg/menufacade"
	"github.com/gin-gonic/gin"
)

func main() {
	logger.BridgeKlog()

	cfg, err := config.Parse(os.Args)
	if err != nil {
		log.Fatalf("failed to parse config: %v", err)
	}

	home, err := os.UserHomeDir()
	if err != nil {
		log.Fatalf("resolving home directory: %v", err)
	}
	userConfigDir, err := os.UserConfigDir()
	if err != nil {
		userConfigDir = filepath.Join(home, ".config")
	}

	cache := discoverycache.NewStore(appdir.ClustersDir())

	loader := clusterregistry.ViewLoader{
		BuiltinViewsDir:   filepath.Join(appdir.Root(), "views"),
		ExtensionsDir:     appdir.ExtensionsDir(),
		BuiltinMenusDir:   filepath.Join(appdir.Root(), "menus"),
		ExtensionMenusDir: filepath.Join(appdir.ExtensionsDir(), "menus"),
		OnClipboard: func(source clustersource.Source, write menufacade.ClipboardWrite) {
			logger.Log(logger.LevelDebug, map[string]string{"cluster": source.String()}, nil, "clipboard write requested by menu action")
		},
	}
	registry := clusterregistry.New(cache, loader)

	if !cfg.DevMode {
		gin.SetMode(gin.ReleaseMode)
	}

	server := wsapi.New(registry, cache, home, userConfigDir, cfg.DevMode)

	go server.WatchKubeconfigs(func(entries []kubeconfig.Entry) {
		logger.Log(logger.LevelInfo, map[string]string{"count": fmt.Sprintf("%d", len(entries))}, nil, "kubeconfig contexts reloaded")
	})

	router := gin.New()
	router.Use(gin.Recovery())
	server.Routes(router)

	addr := fmt.Sprintf("%s:%d", cfg.ListenAddr, cfg.Port)
	srv := &http.Server{Addr: addr, Handler: router}

	serverErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	logger.Log(logger.LevelInfo, map[string]string{"address": addr}, nil, "clustercore server starting")

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		log.Fatalf("server error: %v", err)
	case <-stop:
		logger.Log(logger.LevelInfo, nil, nil, "shutting down")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Log(logger.LevelError, nil, err, "server forced to shutdown")
	} else {
		logger.Log(logger.LevelInfo, nil, nil, "server gracefully stopped")
	}
}
