package transport

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"sync"

	"github.com/felixgeelhaar/mediate/behavior"
)

// Stdio serves the frame protocol as newline-delimited JSON over
// stdin/stdout. Frames are handled in order.
type Stdio struct {
	dispatcher Dispatcher
	in         io.Reader
	out        io.Writer
	metadata   behavior.Metadata
	maxFrame   int

	mu sync.Mutex
}

// DefaultMaxFrameSize is the largest frame Stdio accepts unless configured
// otherwise.
const DefaultMaxFrameSize = 1 << 20

// StdioOption configures a Stdio transport.
type StdioOption func(*Stdio)

// WithStdin sets a custom stdin reader.
func WithStdin(r io.Reader) StdioOption {
	return func(s *Stdio) {
		s.in = r
	}
}

// WithStdout sets a custom stdout writer.
func WithStdout(w io.Writer) StdioOption {
	return func(s *Stdio) {
		s.out = w
	}
}

// WithStdioMetadata sets metadata applied to every frame, such as a token
// for the local operator.
func WithStdioMetadata(md behavior.Metadata) StdioOption {
	return func(s *Stdio) {
		s.metadata = md
	}
}

// WithStdioMaxFrameSize sets the largest accepted frame in bytes. Larger
// frames are answered with a too_large error and skipped.
func WithStdioMaxFrameSize(n int) StdioOption {
	return func(s *Stdio) {
		if n > 0 {
			s.maxFrame = n
		}
	}
}

// NewStdio creates a new stdio transport for d.
func NewStdio(d Dispatcher, opts ...StdioOption) *Stdio {
	s := &Stdio{
		dispatcher: d,
		in:         os.Stdin,
		out:        os.Stdout,
		maxFrame:   DefaultMaxFrameSize,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Addr returns the transport address.
func (s *Stdio) Addr() string {
	return "stdio"
}

// stdioLine is one line of input, or the marker for a line that exceeded
// the frame size.
type stdioLine struct {
	data     []byte
	tooLarge bool
}

// Serve processes frames from stdin until EOF or ctx is canceled.
func (s *Stdio) Serve(ctx context.Context) error {
	reader := bufio.NewReaderSize(s.in, 64*1024)

	lines := make(chan stdioLine)
	scanErr := make(chan error, 1)

	go func() {
		defer close(lines)
		for {
			line, err := readLine(reader, s.maxFrame)
			if err != nil {
				if !errors.Is(err, io.EOF) {
					scanErr <- err
				}
				return
			}
			select {
			case lines <- line:
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-scanErr:
			return err
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-scanErr:
					return err
				default:
					return nil // EOF
				}
			}
			if line.tooLarge {
				s.write(errorReply("", ErrBodyTooLarge))
				continue
			}
			if len(line.data) == 0 {
				continue
			}
			s.write(handleFrame(ctx, s.dispatcher, line.data, s.metadata))
		}
	}
}

// readLine returns the next line without its line ending. A line longer
// than limit is consumed up to its newline and reported as too large.
func readLine(r *bufio.Reader, limit int) (stdioLine, error) {
	var (
		buf      []byte
		tooLarge bool
		read     bool
	)
	for {
		chunk, err := r.ReadSlice('\n')
		read = read || len(chunk) > 0
		if !tooLarge {
			// Two extra bytes leave room for a trailing "\r\n"
			if len(buf)+len(chunk) > limit+2 {
				tooLarge, buf = true, nil
			} else {
				buf = append(buf, chunk...)
			}
		}

		switch {
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		case errors.Is(err, io.EOF) && read:
		case err != nil:
			return stdioLine{}, err
		}

		if tooLarge {
			return stdioLine{tooLarge: true}, nil
		}
		line := bytes.TrimSuffix(bytes.TrimSuffix(buf, []byte("\n")), []byte("\r"))
		if len(line) > limit {
			return stdioLine{tooLarge: true}, nil
		}
		return stdioLine{data: line}, nil
	}
}

func (s *Stdio) write(reply Reply) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(reply)
	if err != nil {
		data, _ = json.Marshal(errorReply(reply.ID, err))
	}

	_, _ = s.out.Write(data)
	_, _ = s.out.Write([]byte("\n"))
}
