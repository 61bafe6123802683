package execsession

import (
	"testing"

	"k8s.io/client-go/tools/remotecommand"
)

func TestSizeQueuePushReplacesPending(t *testing.T) {
	q := newSizeQueue()
	q.push(80, 24)
	q.push(120, 40)

	got := q.Next()
	if got == nil {
		t.Fatal("Next() returned nil after a push")
	}
	if got.Width != 120 || got.Height != 40 {
		t.Errorf("Next() = %+v, want the latest pushed size (120x40)", got)
	}
}

func TestSizeQueueCloseUnblocksNext(t *testing.T) {
	q := newSizeQueue()
	q.close()

	if got := q.Next(); got != nil {
		t.Errorf("Next() after close = %+v, want nil", got)
	}
}

func TestSizeQueuePreservesUnreadSize(t *testing.T) {
	q := newSizeQueue()
	q.push(80, 24)

	done := make(chan *remotecommand.TerminalSize, 1)
	go func() { done <- q.Next() }()

	got := <-done
	if got == nil || got.Width != 80 {
		t.Fatalf("Next() = %+v, want 80x24", got)
	}
}

func TestStdinReaderReadsPushedChunks(t *testing.T) {
	r := &stdinReader{ch: make(chan []byte, 4)}
	r.ch <- []byte("hello ")
	r.ch <- []byte("world")
	close(r.ch)

	buf := make([]byte, 64)
	var out []byte
	for {
		n, err := r.Read(buf)
		out = append(out, buf[:n]...)
		if err != nil {
			break
		}
	}
	if string(out) != "hello world" {
		t.Errorf("Read assembled %q, want %q", out, "hello world")
	}
}

func TestStdinReaderReadSmallerThanChunk(t *testing.T) {
	r := &stdinReader{ch: make(chan []byte, 1)}
	r.ch <- []byte("abcdef")
	close(r.ch)

	buf := make([]byte, 3)
	n, err := r.Read(buf)
	if err != nil {
		t.Fatalf("first Read returned error: %v", err)
	}
	if string(buf[:n]) != "abc" {
		t.Fatalf("first Read = %q, want %q", buf[:n], "abc")
	}

	n, err = r.Read(buf)
	if err != nil {
		t.Fatalf("second Read returned error: %v", err)
	}
	if string(buf[:n]) != "def" {
		t.Fatalf("second Read = %q, want %q", buf[:n], "def")
	}
}

func TestStdoutWriterEmitsBytesEvent(t *testing.T) {
	var got []Event
	w := &stdoutWriter{emit: func(e Event) { got = append(got, e) }}

	n, err := w.Write([]byte("output"))
	if err != nil {
		t.Fatalf("Write returned error: %v", err)
	}
	if n != len("output") {
		t.Fatalf("Write returned n=%d, want %d", n, len("output"))
	}
	if len(got) != 1 {
		t.Fatalf("expected exactly one emitted event, got %d", len(got))
	}
	b, ok := got[0].(Bytes)
	if !ok {
		t.Fatalf("emitted event type = %T, want Bytes", got[0])
	}
	if string(b.Data) != "output" {
		t.Errorf("Bytes.Data = %q, want %q", b.Data, "output")
	}
}

func TestMuxOperationsOnUnknownSessionError(t *testing.T) {
	m := New()

	if err := m.Input("does-not-exist", []byte("x")); err == nil {
		t.Error("Input on an unknown session should error")
	}
	if err := m.Resize("does-not-exist", 80, 24); err == nil {
		t.Error("Resize on an unknown session should error")
	}
	if err := m.AbortSession("does-not-exist"); err == nil {
		t.Error("AbortSession on an unknown session should error")
	}
	if m.Registered("does-not-exist") {
		t.Error("Registered should report false for an unknown session")
	}
}
