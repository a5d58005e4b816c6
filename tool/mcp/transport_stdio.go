package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
)

// Transport moves JSON-RPC messages between the server and its peer.
type Transport interface {
	// Receive returns the next inbound message. A *DecodeError reports one
	// malformed message; io.EOF reports that the peer closed the stream.
	Receive(ctx context.Context) (Message, error)
	Send(ctx context.Context, message Message) error
	Close(ctx context.Context) error
}

type inbound struct {
	message Message
	err     error
}

// StdioTransport implements the server side of the MCP stdio transport:
// newline-delimited JSON read from in and written to out.
type StdioTransport struct {
	mu     sync.Mutex
	in     io.Reader
	out    io.Writer
	recvCh chan inbound
	doneCh chan struct{}
	closed bool
}

// NewStdioTransport starts reading in and returns a transport writing to out.
// Pass os.Stdin and os.Stdout when serving a real client.
func NewStdioTransport(in io.Reader, out io.Writer) *StdioTransport {
	t := &StdioTransport{
		in:     in,
		out:    out,
		recvCh: make(chan inbound, 64),
		doneCh: make(chan struct{}),
	}
	go t.readLoop()
	return t
}

func (t *StdioTransport) readLoop() {
	reader := bufio.NewReader(t.in)
	for {
		line, err := reader.ReadBytes('\n')
		if trimmed := bytes.TrimSpace(line); len(trimmed) > 0 {
			var item inbound
			switch {
			case trimmed[0] != '{' && json.Valid(trimmed):
				item = inbound{err: &DecodeError{Line: bytes.Clone(trimmed), Err: ErrNotObject}}
			default:
				if decodeErr := json.Unmarshal(trimmed, &item.message); decodeErr != nil {
					item = inbound{err: &DecodeError{Line: bytes.Clone(trimmed), Err: decodeErr}}
				}
			}
			if !t.deliver(item) {
				return
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				err = fmt.Errorf("mcp: stdio read: %w", err)
			}
			t.deliver(inbound{err: err})
			return
		}
	}
}

func (t *StdioTransport) deliver(item inbound) bool {
	select {
	case t.recvCh <- item:
		return true
	case <-t.doneCh:
		return false
	}
}

// Receive reads the next message from the input stream in arrival order.
func (t *StdioTransport) Receive(ctx context.Context) (Message, error) {
	select {
	case <-ctx.Done():
		return Message{}, ctx.Err()
	case <-t.doneCh:
		return Message{}, io.EOF
	case item := <-t.recvCh:
		return item.message, item.err
	}
}

// Send writes one message followed by a newline.
func (t *StdioTransport) Send(_ context.Context, message Message) error {
	message.JSONRPC = jsonRPCVersion
	data, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("mcp: encode message: %w", err)
	}
	data = append(data, '\n')

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return errors.New("mcp: stdio transport is closed")
	}
	if _, err := t.out.Write(data); err != nil {
		return fmt.Errorf("mcp: write message: %w", err)
	}
	return nil
}

// Close stops the read loop and closes the input when it is closable. It is
// safe to call more than once.
func (t *StdioTransport) Close(context.Context) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	close(t.doneCh)
	t.mu.Unlock()

	if closer, ok := t.in.(io.Closer); ok {
		_ = closer.Close()
	}
	if flusher, ok := t.out.(interface{ Sync() error }); ok {
		_ = flusher.Sync()
	}
	return nil
}
