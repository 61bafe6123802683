// Package clientbuild constructs the Kubernetes clients a ClusterState
// needs from a clustersource.Source, the one place the core turns a
// kubeconfig file + context name into a live rest.Config. Grounded on
// agentkube-agentkube/pkg/helm/handler.go's restConfigGetter (timeouts
// and QPS/burst tuned up front rather than left at client-go defaults,
// since discovery and watch both issue many requests in a burst) and
// internal/routes/context_handler.go's clientcmd.LoadFromFile usage for
// locating the context within its file.
package clientbuild

import (
	"time"

	"github.com/agentkube/clustercore/pkg/clustererr"
	"github.com/agentkube/clustercore/pkg/clustersource"
	apiextensionsclientset "k8s.io/apiextensions-apiserver/pkg/client/clientset/clientset"
	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
)

// Clients bundles every client a connected cluster needs.
type Clients struct {
	Config    *rest.Config
	Clientset kubernetes.Interface
	Dynamic   dynamic.Interface
	APIExt    apiextensionsclientset.Interface
}

// Build resolves source's (provider, file, context) into a live set of
// clients. Only ProviderFile is supported today, matching spec.md §3.
func Build(source clustersource.Source) (*Clients, error) {
	if source.Provider != clustersource.ProviderFile {
		return nil, clustererr.UnsupportedSource(string(source.Provider))
	}

	cfg, err := restConfigFor(source.Source, source.Context)
	if err != nil {
		return nil, clustererr.Kubeconfig(err, "building REST config")
	}

	clientset, err := kubernetes.NewForConfig(cfg)
	if err != nil {
		return nil, clustererr.KubeClient(err, "creating clientset")
	}

	dyn, err := dynamic.NewForConfig(cfg)
	if err != nil {
		return nil, clustererr.KubeClient(err, "creating dynamic client")
	}

	apiext, err := apiextensionsclientset.NewForConfig(cfg)
	if err != nil {
		return nil, clustererr.KubeClient(err, "creating apiextensions client")
	}

	return &Clients{Config: cfg, Clientset: clientset, Dynamic: dyn, APIExt: apiext}, nil
}

func restConfigFor(path, contextName string) (*rest.Config, error) {
	loadingRules := &clientcmd.ClientConfigLoadingRules{ExplicitPath: path}
	overrides := &clientcmd.ConfigOverrides{CurrentContext: contextName}

	clientConfig := clientcmd.NewNonInteractiveDeferredLoadingClientConfig(loadingRules, overrides)

	cfg, err := clientConfig.ClientConfig()
	if err != nil {
		return nil, err
	}

	// Discovery and watch both burst many requests at connect time; the
	// client-go defaults (QPS 5, Burst 10) stall a cluster with a large
	// CRD count, the same problem agentkube's helm handler tuned around.
	cfg.Timeout = 2 * time.Minute
	cfg.QPS = 50
	cfg.Burst = 100

	return cfg, nil
}
