package client

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"

	"github.com/felixgeelhaar/mediate/transport"
)

// ErrClosed is returned by Send after the transport has been closed or the
// remote side stopped answering.
var ErrClosed = errors.New("client: transport closed")

// reply mirrors transport.Reply with the result left undecoded.
type reply struct {
	ID     string               `json:"id"`
	Result json.RawMessage      `json:"result,omitempty"`
	Error  *transport.ErrorBody `json:"error,omitempty"`
}

// StreamTransport exchanges newline-delimited frames over a reader and a
// writer, matching replies to callers by frame ID.
type StreamTransport struct {
	w       io.WriteCloser
	writeMu sync.Mutex

	mu       sync.Mutex
	respChan map[string]chan reply
	closed   bool

	done   chan struct{}
	readWG sync.WaitGroup

	cmd    *exec.Cmd
	stderr io.ReadCloser
}

// NewStreamTransport reads replies from r and writes frames to w.
func NewStreamTransport(r io.Reader, w io.WriteCloser) *StreamTransport {
	t := &StreamTransport{
		w:        w,
		respChan: make(map[string]chan reply),
		done:     make(chan struct{}),
	}

	// Start reading responses
	t.readWG.Add(1)
	go t.readResponses(r)

	return t
}

// NewStdioTransport starts command, typically a server's stdio mode, and
// talks to it over its stdin and stdout.
func NewStdioTransport(command string, args ...string) (*StreamTransport, error) {
	cmd := exec.Command(command, args...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start command: %w", err)
	}

	t := NewStreamTransport(stdout, stdin)
	t.cmd = cmd
	t.stderr = stderr
	return t, nil
}

// Send writes the frame and waits for the reply with the same ID.
func (t *StreamTransport) Send(ctx context.Context, frame transport.Frame) (json.RawMessage, error) {
	if frame.ID == "" {
		return nil, fmt.Errorf("client: frame ID is required")
	}

	data, err := json.Marshal(frame)
	if err != nil {
		return nil, fmt.Errorf("marshal frame: %w", err)
	}

	respCh := make(chan reply, 1)

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil, ErrClosed
	}
	if _, busy := t.respChan[frame.ID]; busy {
		t.mu.Unlock()
		return nil, fmt.Errorf("client: frame %s is already in flight", frame.ID)
	}
	t.respChan[frame.ID] = respCh
	t.mu.Unlock()

	t.writeMu.Lock()
	_, err = t.w.Write(append(data, '\n'))
	t.writeMu.Unlock()

	// Clean up on return
	defer func() {
		t.mu.Lock()
		delete(t.respChan, frame.ID)
		t.mu.Unlock()
	}()

	if err != nil {
		return nil, fmt.Errorf("write frame: %w", err)
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-t.done:
		return nil, ErrClosed
	case r := <-respCh:
		if r.Error != nil {
			return nil, &Error{Body: *r.Error}
		}
		return r.Result, nil
	}
}

// Close closes the writer and waits for the reader to finish. A started
// command is waited for as well.
func (t *StreamTransport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.mu.Unlock()

	// Close the writer to signal EOF
	err := t.w.Close()

	t.readWG.Wait()

	if t.cmd != nil {
		return t.cmd.Wait()
	}
	return err
}

// Stderr returns the stderr of a command started by NewStdioTransport.
func (t *StreamTransport) Stderr() io.Reader {
	return t.stderr
}

func (t *StreamTransport) readResponses(r io.Reader) {
	defer t.readWG.Done()
	defer close(t.done)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	for scanner.Scan() {
		var resp reply
		if err := json.Unmarshal(scanner.Bytes(), &resp); err != nil {
			continue // Skip malformed replies
		}

		t.mu.Lock()
		ch, ok := t.respChan[resp.ID]
		t.mu.Unlock()
		if !ok {
			continue
		}
		select {
		case ch <- resp:
		default:
		}
	}
}
