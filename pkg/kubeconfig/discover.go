// Package kubeconfig implements kubeconfig file discovery (§6
// "Kubeconfig discovery"): scanning well-known paths for kubeconfig
// files, turning each context into a clustersource.Source, and watching
// those files for changes so newly added or removed contexts are
// reflected without a restart. Grounded on
// agentkube-agentkube/internal/operator/pkg/kubeconfig/watcher.go
// (fsnotify.Watcher + a re-add-missing-files ticker) for the watch loop,
// and on internal/routes/context_handler.go's clientcmd.LoadFromFile
// usage for parsing.
package kubeconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/agentkube/clustercore/pkg/clustererr"
	"github.com/agentkube/clustercore/pkg/clustersource"
	"github.com/agentkube/clustercore/pkg/logger"
	"k8s.io/client-go/tools/clientcmd"
)

// searchDirs lists the per-user config-dir subpaths §6 names in addition
// to $HOME/.kube/config. Each is a directory whose files are all treated
// as candidate kubeconfigs ("OpenLens/kubeconfigs/*", "Lens/kubeconfigs/*").
func searchDirs(configDir string) []string {
	return []string{
		filepath.Join(configDir, "OpenLens", "kubeconfigs"),
		filepath.Join(configDir, "Lens", "kubeconfigs"),
	}
}

// DiscoverPaths returns every kubeconfig file path found under
// $HOME/.kube/config plus the per-user config-dir kubeconfig directories.
// A missing directory is ignored, not an error, per §6.
func DiscoverPaths(home, userConfigDir string) []string {
	var paths []string

	primary := filepath.Join(home, ".kube", "config")
	if _, err := os.Stat(primary); err == nil {
		paths = append(paths, primary)
	}

	for _, dir := range searchDirs(userConfigDir) {
		entries, err := os.ReadDir(dir)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			logger.Log(logger.LevelWarn, map[string]string{"dir": dir}, err, "scanning kubeconfig directory")
			continue
		}
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}

	sort.Strings(paths)
	return paths
}

// Entry is one discovered (context, source file) pair, ready to become
// a clustersource.Source. Name is the display name after collision
// renaming (supplemented feature, below); Context is the raw context
// name as it appears inside the file.
type Entry struct {
	Name    string
	Context string
	Path    string
}

// LoadFile parses one kubeconfig file and returns one Entry per context
// it defines. A parse error is a warning (§6), not a fatal condition —
// the caller logs and skips the file, continuing with whatever else it
// found.
func LoadFile(path string) ([]Entry, error) {
	cfg, err := clientcmd.LoadFromFile(path)
	if err != nil {
		return nil, clustererr.Kubeconfig(err, fmt.Sprintf("parsing kubeconfig %s", path))
	}

	entries := make([]Entry, 0, len(cfg.Contexts))
	names := make([]string, 0, len(cfg.Contexts))
	for name := range cfg.Contexts {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		entries = append(entries, Entry{Name: name, Context: name, Path: path})
	}
	return entries, nil
}

// LoadAll scans every path returned by DiscoverPaths and loads its
// contexts, applying context rename-on-collision (supplemented feature,
// grounded on original_source's cluster_profile_commands.rs): when two
// files define a context of the same name, the later one (by sorted path
// order) is disambiguated by suffixing its file's parent directory and
// base name, e.g. "shared (kubeconfigs/other.yaml)", so both remain
// selectable.
func LoadAll(home, userConfigDir string) []Entry {
	var all []Entry
	seen := make(map[string]bool)

	for _, path := range DiscoverPaths(home, userConfigDir) {
		entries, err := LoadFile(path)
		if err != nil {
			logger.Log(logger.LevelWarn, map[string]string{"path": path}, err, "skipping unparsable kubeconfig file")
			continue
		}

		for _, e := range entries {
			if seen[e.Name] {
				e.Name = fmt.Sprintf("%s (%s)", e.Name, disambiguator(path))
			}
			seen[e.Name] = true
			all = append(all, e)
		}
	}

	return all
}

func disambiguator(path string) string {
	base := filepath.Base(path)
	dir := filepath.Base(filepath.Dir(path))
	if dir == "." || dir == "" {
		return base
	}
	return dir + "/" + base
}

// Source converts an Entry into the cluster identity the rest of the
// core keys everything by.
func (e Entry) Source() clustersource.Source {
	return clustersource.New(e.Path, e.Context)
}

// StripHome is a small convenience used by callers formatting a display
// path; kept here since it's only ever applied to kubeconfig paths.
func StripHome(path, home string) string {
	if strings.HasPrefix(path, home) {
		return "~" + strings.TrimPrefix(path, home)
	}
	return path
}
