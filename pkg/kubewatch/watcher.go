// Package kubewatch implements the Kube Watcher (C1): given a GVR and an
// optional namespace, it streams Applied/Deleted events for that kind,
// choosing between the newer streaming-list watch and a classic
// list-then-watch based on what the connected API server supports.
// Grounded on agentkube-agentkube/pkg/controller/controller.go's
// cache.ListWatch + watch.Interface wiring, generalized from that file's
// fixed per-kind informer set to an arbitrary runtime-discovered GVR
// using the dynamic client, since the spec watches whatever the
// Discovery Engine found rather than a fixed built-in resource list.
package kubewatch

import (
	"context"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/agentkube/clustercore/pkg/logger"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/apimachinery/pkg/watch"
	"k8s.io/client-go/dynamic"
)

// streamingListConstraints gates use of the watch-list (SendInitialEvents)
// API to the exact server version ranges where the feature is enabled by
// default per §4.1 (">=1.32,<1.33" or ">=1.34"); every other version,
// including the 1.33 gap where it shipped but defaulted off, falls back
// to a plain List followed by a Watch from the list's resource version.
var streamingListConstraints = []*semver.Constraints{
	mustConstraint(">= 1.32.0-0, < 1.33.0-0"),
	mustConstraint(">= 1.34.0-0"),
}

func mustConstraint(c string) *semver.Constraints {
	parsed, err := semver.NewConstraint(c)
	if err != nil {
		panic(err)
	}
	return parsed
}

// SupportsStreamingList reports whether gitVersion (e.g. "v1.31.2")
// satisfies one of the streaming-list gated ranges. An unparsable
// version conservatively falls back to the classic path rather than
// panicking, per §9's "do not panic" design note.
func SupportsStreamingList(gitVersion string) bool {
	v, err := semver.NewVersion(normalizeGitVersion(gitVersion))
	if err != nil {
		logger.Log(logger.LevelWarn, map[string]string{"version": gitVersion}, err, "unparsable server version, assuming no streaming-list support")
		return false
	}
	for _, c := range streamingListConstraints {
		if c.Check(v) {
			return true
		}
	}
	return false
}

func normalizeGitVersion(v string) string {
	if len(v) > 0 && (v[0] == 'v' || v[0] == 'V') {
		return v[1:]
	}
	return v
}

// Event is the sealed set of events a Watcher emits.
type Event interface{ isWatchEvent() }

// Applied covers both creation and update of an object — the spec does
// not distinguish them at this layer, matching how a watch stream itself
// only distinguishes Added/Modified/Deleted.
type Applied struct {
	Object *unstructured.Unstructured
}

// Deleted announces an object's removal.
type Deleted struct {
	UID       string
	Namespace string
	Name      string
}

// StreamError is a transient error on this one event — e.g. malformed
// payload — that does not end the watch. A delete event missing its UID
// is not reported this way: handleEvent logs it and skips the event.
type StreamError struct {
	Err error
}

func (Applied) isWatchEvent()     {}
func (Deleted) isWatchEvent()     {}
func (StreamError) isWatchEvent() {}

// Watcher streams one GVR/namespace combination until ctx is cancelled.
type Watcher struct {
	Dynamic   dynamic.Interface
	GVR       schema.GroupVersionResource
	Namespace string
	GitVersion string
}

func New(dyn dynamic.Interface, gvr schema.GroupVersionResource, namespace, gitVersion string) *Watcher {
	return &Watcher{Dynamic: dyn, GVR: gvr, Namespace: namespace, GitVersion: gitVersion}
}

func (w *Watcher) resourceClient() dynamic.ResourceInterface {
	// An empty namespace promotes to cluster scope: for a cluster-scoped
	// kind this is the only valid call shape, and for a namespaced kind
	// it watches across all namespaces, matching §4.1's "empty namespace
	// means all namespaces" edge case.
	if w.Namespace == "" {
		return w.Dynamic.Resource(w.GVR)
	}
	return w.Dynamic.Resource(w.GVR).Namespace(w.Namespace)
}

// Run streams events to emit until ctx is done. It reconnects on
// transient stream errors with a capped backoff rather than returning,
// since a disconnect from the API server is not a terminal condition for
// a live view the frontend still has open.
func (w *Watcher) Run(ctx context.Context, emit func(Event)) error {
	backoff := time.Second
	const maxBackoff = 30 * time.Second

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := w.runOnce(ctx, emit)
		if err == nil {
			backoff = time.Second
			continue
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		logger.Log(logger.LevelWarn, map[string]string{"gvr": w.GVR.String()}, err, "watch stream ended, reconnecting")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

func (w *Watcher) runOnce(ctx context.Context, emit func(Event)) error {
	client := w.resourceClient()

	if SupportsStreamingList(w.GitVersion) {
		return w.watchList(ctx, client, emit)
	}
	return w.listThenWatch(ctx, client, emit)
}

// watchList uses the newer SendInitialEvents contract: the server sends
// the current state as a stream of Added events terminated by a
// bookmark, then continues as a live watch, all on a single connection.
func (w *Watcher) watchList(ctx context.Context, client dynamic.ResourceInterface, emit func(Event)) error {
	sendInitialEvents := true
	rv := "0"
	opts := metav1.ListOptions{
		SendInitialEvents:    &sendInitialEvents,
		ResourceVersionMatch: metav1.ResourceVersionMatchNotOlderThan,
		ResourceVersion:      rv,
		AllowWatchBookmarks:  true,
	}

	ch, err := client.Watch(ctx, opts)
	if err != nil {
		return err
	}
	defer ch.Stop()

	return w.consume(ctx, ch, emit)
}

func (w *Watcher) listThenWatch(ctx context.Context, client dynamic.ResourceInterface, emit func(Event)) error {
	list, err := client.List(ctx, metav1.ListOptions{})
	if err != nil {
		return err
	}

	for i := range list.Items {
		item := list.Items[i]
		emit(Applied{Object: &item})
	}

	ch, err := client.Watch(ctx, metav1.ListOptions{ResourceVersion: list.GetResourceVersion()})
	if err != nil {
		return err
	}
	defer ch.Stop()

	return w.consume(ctx, ch, emit)
}

func (w *Watcher) consume(ctx context.Context, ch watch.Interface, emit func(Event)) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-ch.ResultChan():
			if !ok {
				return nil
			}
			w.handleEvent(ev, emit)
		}
	}
}

func (w *Watcher) handleEvent(ev watch.Event, emit func(Event)) {
	switch ev.Type {
	case watch.Bookmark:
		return
	case watch.Error:
		emit(StreamError{Err: apiStatusError(ev.Object)})
		return
	}

	obj, ok := ev.Object.(*unstructured.Unstructured)
	if !ok {
		emit(StreamError{Err: errNotUnstructured})
		return
	}

	switch ev.Type {
	case watch.Added, watch.Modified:
		emit(Applied{Object: obj})
	case watch.Deleted:
		uid := string(obj.GetUID())
		if uid == "" {
			// A delete event missing a UID is a per-event failure, not a
			// stream failure: log and skip rather than aborting the watch.
			logger.Log(logger.LevelWarn, map[string]string{"name": obj.GetName(), "namespace": obj.GetNamespace()}, nil, "delete event missing UID, skipping")
			return
		}
		emit(Deleted{UID: uid, Namespace: obj.GetNamespace(), Name: obj.GetName()})
	}
}

var errNotUnstructured = &stringError{"watch event object was not unstructured"}

type stringError struct{ s string }

func (e *stringError) Error() string { return e.s }

func apiStatusError(obj interface{}) error {
	if status, ok := obj.(*metav1.Status); ok {
		return &stringError{status.Message}
	}
	return &stringError{"unknown watch error"}
}
