package kubeconfig

import (
	"os"
	"path/filepath"
	"time"

	"github.com/agentkube/clustercore/pkg/logger"
	"github.com/fsnotify/fsnotify"
	"k8s.io/utils/strings/slices"
)

const watchInterval = 10 * time.Second

// Watch watches every discovered kubeconfig file (and re-scans the
// search directories on a ticker, since a newly created file has nothing
// to watch until it exists) and calls onChange with the freshly reloaded
// entry list whenever something changes. Grounded on
// agentkube-agentkube/internal/operator/pkg/kubeconfig/watcher.go's
// fsnotify loop, generalized from a fixed two-source model to the single
// merged entry list this package produces.
func Watch(home, userConfigDir string, onChange func([]Entry)) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Log(logger.LevelError, nil, err, "creating kubeconfig watcher")
		return
	}
	defer watcher.Close()

	paths := DiscoverPaths(home, userConfigDir)
	addFilesToWatcher(watcher, paths)

	ticker := time.NewTicker(watchInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			fresh := DiscoverPaths(home, userConfigDir)
			if len(watcher.WatchList()) != len(fresh) {
				logger.Log(logger.LevelInfo, nil, nil, "kubeconfig watcher: re-scanning for added/removed files")
				addFilesToWatcher(watcher, fresh)
				onChange(LoadAll(home, userConfigDir))
			}

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			triggers := []fsnotify.Op{fsnotify.Create, fsnotify.Write, fsnotify.Remove, fsnotify.Rename}
			for _, trigger := range triggers {
				if event.Op.Has(trigger) {
					logger.Log(logger.LevelInfo, map[string]string{"event": event.Name}, nil, "kubeconfig file changed, reloading contexts")
					onChange(LoadAll(home, userConfigDir))
					break
				}
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			logger.Log(logger.LevelError, nil, err, "watching kubeconfig files")
		}
	}
}

func addFilesToWatcher(watcher *fsnotify.Watcher, paths []string) {
	for _, path := range paths {
		if !filepath.IsAbs(path) {
			abs, err := filepath.Abs(path)
			if err != nil {
				logger.Log(logger.LevelError, map[string]string{"path": path}, err, "resolving absolute kubeconfig path")
				continue
			}
			path = abs
		}

		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue
		}

		if slices.Contains(watcher.WatchList(), path) {
			continue
		}

		if err := watcher.Add(path); err != nil {
			logger.Log(logger.LevelError, map[string]string{"path": path}, err, "adding kubeconfig path to watcher")
		}
	}
}
