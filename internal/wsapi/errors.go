package wsapi

import (
	"fmt"

	"github.com/agentkube/clustercore/pkg/clustererr"
	"github.com/agentkube/clustercore/pkg/clustersource"
	"github.com/agentkube/clustercore/pkg/discovery"
)

func unknownCommand(name string) error {
	return clustererr.Generic(nil, fmt.Sprintf("unknown command %q", name))
}

func errNotConnected(source clustersource.Source) error {
	return clustererr.Generic(nil, fmt.Sprintf("cluster %s is not connected", source.Context))
}

func badPayload(err error) error {
	return clustererr.Generic(err, "malformed command payload")
}

func errDiscoveryNotReady(source clustersource.Source) error {
	return clustererr.Generic(nil, fmt.Sprintf("discovery for %s has not completed yet", source.Context))
}

func errUnknownGVK(gvk discovery.GVK) error {
	return clustererr.Generic(nil, fmt.Sprintf("unknown kind %s/%s %s", gvk.Group, gvk.Version, gvk.Kind))
}
