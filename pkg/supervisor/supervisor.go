// Package supervisor implements the Background Task Supervisor (C6): every
// long-running background operation (a watch, a log stream, an exec
// session) is submitted under a caller-assigned channel id and can be
// aborted by that id from anywhere, including before the task has even
// been submitted. Grounded directly on original_source's
// app_state/channel_tasks.rs (ChannelTasks: handles + to_kill, abort-
// before-submit race handling via the kill list) and realized in the
// idiom of agentkube-agentkube/internal/operator/pkg/utils/queue.go
// (independent mutexes, a stats callback instead of a Tauri event emit).
package supervisor

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/agentkube/clustercore/pkg/clustererr"
	"github.com/agentkube/clustercore/pkg/logger"
)

// killEntryTTL bounds how long an abort-before-submit marker survives
// with no matching Submit. Without this, a channel id that the frontend
// aborts but never actually submits (a race the frontend itself gave up
// on) would sit in the kill list forever. This is the redesign-flag
// decision recorded in DESIGN.md: periodic bounded-age pruning instead of
// the original's unbounded to_kill list.
const killEntryTTL = 5 * time.Minute

const pruneInterval = time.Minute

// StatsFunc is called after every change to the active task count, the Go
// analogue of the original's join_handle_store_stats event.
type StatsFunc func(activeCount int)

type Supervisor struct {
	activeMu sync.Mutex
	active   map[uint32]context.CancelFunc

	killMu sync.Mutex
	toKill map[uint32]time.Time

	stats StatsFunc

	stopPrune chan struct{}
}

func New(stats StatsFunc) *Supervisor {
	if stats == nil {
		stats = func(int) {}
	}
	s := &Supervisor{
		active:    make(map[uint32]context.CancelFunc),
		toKill:    make(map[uint32]time.Time),
		stats:     stats,
		stopPrune: make(chan struct{}),
	}
	go s.pruneLoop()
	return s
}

// Submit runs task under a cancellable context registered against
// channelID. If channelID was aborted before this Submit arrived, the
// task never runs and Submit returns a clustererr.TaskRejected error —
// the same race original_source's submit() resolves by checking to_kill
// first.
func (s *Supervisor) Submit(channelID uint32, task func(ctx context.Context)) error {
	s.killMu.Lock()
	if _, killed := s.toKill[channelID]; killed {
		delete(s.toKill, channelID)
		s.killMu.Unlock()
		return clustererr.TaskRejected(channelID)
	}
	s.killMu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())

	s.activeMu.Lock()
	s.active[channelID] = cancel
	count := len(s.active)
	s.activeMu.Unlock()
	s.stats(count)

	go func() {
		defer func() {
			s.activeMu.Lock()
			delete(s.active, channelID)
			count := len(s.active)
			s.activeMu.Unlock()
			s.stats(count)
			cancel()
		}()
		task(ctx)
	}()

	return nil
}

// Abort cancels channelID's task if it is running, or records the abort
// so a Submit that hasn't happened yet is rejected instead of started.
func (s *Supervisor) Abort(channelID uint32) {
	s.activeMu.Lock()
	cancel, ok := s.active[channelID]
	s.activeMu.Unlock()

	if ok {
		cancel()
		return
	}

	s.killMu.Lock()
	s.toKill[channelID] = time.Now()
	s.killMu.Unlock()
}

// AbortAll cancels every currently running task.
func (s *Supervisor) AbortAll() {
	s.activeMu.Lock()
	cancels := make([]context.CancelFunc, 0, len(s.active))
	for _, c := range s.active {
		cancels = append(cancels, c)
	}
	s.activeMu.Unlock()

	for _, c := range cancels {
		c()
	}
}

// ActiveCount reports the number of currently running tasks.
func (s *Supervisor) ActiveCount() int {
	s.activeMu.Lock()
	defer s.activeMu.Unlock()
	return len(s.active)
}

// Stop halts the background pruning loop. Running tasks are left alone;
// callers that want a full shutdown should call AbortAll first.
func (s *Supervisor) Stop() {
	close(s.stopPrune)
}

func (s *Supervisor) pruneLoop() {
	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopPrune:
			return
		case <-ticker.C:
			s.pruneExpiredKills()
		}
	}
}

func (s *Supervisor) pruneExpiredKills() {
	cutoff := time.Now().Add(-killEntryTTL)

	s.killMu.Lock()
	defer s.killMu.Unlock()

	for id, markedAt := range s.toKill {
		if markedAt.Before(cutoff) {
			delete(s.toKill, id)
			logger.Log(logger.LevelDebug, map[string]string{"channel": strconv.FormatUint(uint64(id), 10)}, nil, "pruned stale abort-before-submit marker")
		}
	}
}
