// Package execsession implements the Exec Session multiplexer (C9): an
// interactive TTY against a container, reachable by the frontend as a
// stdin/resize/abort request channel and a stdout/end event stream.
// Grounded on spec.md §4.9 for the event-loop shape and on
// otterscale-otterscale-agent/internal/providers/kubernetes/runtime_repo.go's
// Exec (remotecommand.NewSPDYExecutor + StreamOptions.TerminalSizeQueue)
// for the client-go wiring, with the session/registry split mirrored from
// that same repo's internal/core/session.go (TerminalSizeQueue,
// SessionStore) adapted to the spec's ExecSessions map-of-request-senders
// shape instead of a Done-channel-per-session model.
package execsession

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/agentkube/clustercore/pkg/clustererr"
	"github.com/agentkube/clustercore/pkg/logger"
	"github.com/google/uuid"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/kubernetes/scheme"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/remotecommand"
)

// SessionID identifies one live exec session.
type SessionID string

// Request is the sealed set of messages the frontend sends into a live
// session, matching §3's ExecSessionRequest union.
type Request interface{ isExecRequest() }

// Input carries stdin bytes to write.
type Input struct{ Bytes []byte }

// Resize carries a new terminal size.
type Resize struct{ Cols, Rows uint16 }

// Abort tears the session down.
type Abort struct{}

func (Input) isExecRequest()  {}
func (Resize) isExecRequest() {}
func (Abort) isExecRequest()  {}

// Event is the sealed set of messages a session emits to the frontend.
type Event interface{ isExecEvent() }

// Ready announces the session is attached and accepting input.
type Ready struct{ ID SessionID }

// Bytes carries stdout/stderr output.
type Bytes struct{ Data []byte }

// End announces the process exited (or the session was aborted).
type End struct{ Err error }

func (Ready) isExecEvent() {}
func (Bytes) isExecEvent() {}
func (End) isExecEvent()   {}

// sizeQueue adapts Resize requests arriving on the request channel to
// remotecommand.TerminalSizeQueue, which the SPDY executor polls
// synchronously from its own goroutine.
type sizeQueue struct {
	ch chan remotecommand.TerminalSize
}

func newSizeQueue() *sizeQueue {
	return &sizeQueue{ch: make(chan remotecommand.TerminalSize, 1)}
}

func (q *sizeQueue) Next() *remotecommand.TerminalSize {
	size, ok := <-q.ch
	if !ok {
		return nil
	}
	return &size
}

func (q *sizeQueue) push(cols, rows uint16) {
	// A try-send: a resize that arrives faster than the executor drains
	// is fine to drop in favor of the latest size, per §4.9's "try-send
	// on the resize sink".
	select {
	case q.ch <- remotecommand.TerminalSize{Width: cols, Height: rows}:
	default:
		select {
		case <-q.ch:
		default:
		}
		q.ch <- remotecommand.TerminalSize{Width: cols, Height: rows}
	}
}

func (q *sizeQueue) close() { close(q.ch) }

// stdinReader turns a channel of byte slices into an io.Reader the SPDY
// stream reads stdin from, since remotecommand.StreamOptions wants an
// io.Reader, not a push API.
type stdinReader struct {
	ch  chan []byte
	buf []byte
}

func (r *stdinReader) Read(p []byte) (int, error) {
	for len(r.buf) == 0 {
		buf, ok := <-r.ch
		if !ok {
			return 0, io.EOF
		}
		r.buf = buf
	}
	n := copy(p, r.buf)
	r.buf = r.buf[n:]
	return n, nil
}

// stdoutWriter forwards every Write as a Bytes event.
type stdoutWriter struct {
	emit func(Event)
}

func (w *stdoutWriter) Write(p []byte) (int, error) {
	cp := append([]byte(nil), p...)
	w.emit(Bytes{Data: cp})
	return len(p), nil
}

// session is the server-side state for one live exec session.
type session struct {
	requests chan Request
}

// Mux owns every live exec session, matching §3's
// `ExecSessions: map(SessionId → Sender<ExecSessionRequest>)`.
type Mux struct {
	mu       sync.Mutex
	sessions map[SessionID]*session
}

func New() *Mux {
	return &Mux{sessions: make(map[SessionID]*session)}
}

// Start begins an interactive exec session against container in pod
// namespace/name and runs its event loop until the context is cancelled,
// the remote process exits, or an Abort request arrives. emit is called
// for every Event produced, including the initial Ready. Start blocks for
// the lifetime of the session — callers run it under the Background Task
// Supervisor (§4.9 "Isolation") keyed by the IPC channel id so cancelling
// that channel aborts the loop via ctx.
func (m *Mux) Start(ctx context.Context, client kubernetes.Interface, cfg *rest.Config, namespace, pod, container string, emit func(Event)) (SessionID, error) {
	execOpts := &corev1.PodExecOptions{
		Container: container,
		// A login-ish shell: try bash first, fall back to sh, matching
		// §4.9's exact command.
		Command: []string{"sh", "-c", "exec bash -i || exec sh -i"},
		Stdin:   true,
		Stdout:  true,
		Stderr:  true,
		TTY:     true,
	}

	req := client.CoreV1().RESTClient().Post().
		Resource("pods").
		Name(pod).
		Namespace(namespace).
		SubResource("exec").
		VersionedParams(execOpts, scheme.ParameterCodec)

	executor, err := remotecommand.NewSPDYExecutor(cfg, http.MethodPost, req.URL())
	if err != nil {
		return "", clustererr.KubeClient(err, "creating exec executor")
	}

	id := SessionID(uuid.NewString())
	reqCh := make(chan Request, 16)
	sess := &session{requests: reqCh}

	m.mu.Lock()
	m.sessions[id] = sess
	m.mu.Unlock()

	sessionCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer m.remove(id)

	stdin := &stdinReader{ch: make(chan []byte, 16)}
	stdout := &stdoutWriter{emit: emit}
	sizes := newSizeQueue()
	defer sizes.close()

	streamDone := make(chan error, 1)
	go func() {
		streamDone <- executor.StreamWithContext(sessionCtx, remotecommand.StreamOptions{
			Stdin:             stdin,
			Stdout:            stdout,
			Stderr:            stdout,
			Tty:               true,
			TerminalSizeQueue: sizes,
		})
	}()

	emit(Ready{ID: id})

	var endErr error
loop:
	for {
		select {
		case <-sessionCtx.Done():
			endErr = sessionCtx.Err()
			break loop
		case err := <-streamDone:
			endErr = err
			break loop
		case r, ok := <-reqCh:
			if !ok {
				break loop
			}
			switch v := r.(type) {
			case Input:
				select {
				case stdin.ch <- v.Bytes:
				case <-sessionCtx.Done():
					break loop
				}
			case Resize:
				sizes.push(v.Cols, v.Rows)
			case Abort:
				cancel()
				<-streamDone
				endErr = nil
				break loop
			}
		}
	}

	close(stdin.ch)
	emit(End{Err: endErr})

	return id, nil
}

// Input writes bytes to a live session's stdin.
func (m *Mux) Input(id SessionID, data []byte) error {
	return m.send(id, Input{Bytes: data})
}

// Resize requests a terminal size change on a live session.
func (m *Mux) Resize(id SessionID, cols, rows uint16) error {
	return m.send(id, Resize{Cols: cols, Rows: rows})
}

// AbortSession tears a live session down.
func (m *Mux) AbortSession(id SessionID) error {
	return m.send(id, Abort{})
}

func (m *Mux) send(id SessionID, r Request) error {
	m.mu.Lock()
	sess, ok := m.sessions[id]
	m.mu.Unlock()
	if !ok {
		return clustererr.Generic(nil, fmt.Sprintf("unknown exec session %q", id))
	}

	select {
	case sess.requests <- r:
		return nil
	default:
		logger.Log(logger.LevelWarn, map[string]string{"session": string(id)}, nil, "exec session request channel full, dropping")
		return clustererr.Generic(nil, "exec session busy")
	}
}

func (m *Mux) remove(id SessionID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
}

// Registered reports whether id is a live session, without sending it a
// request.
func (m *Mux) Registered(id SessionID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.sessions[id]
	return ok
}
