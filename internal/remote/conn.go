package remote

import (
	"bufio"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/berrythewa/clipbridge/pkg/compression"
)

const (
	// MaxMessageSize is the longest line we will read (64 MiB).
	MaxMessageSize = 64 * 1024 * 1024

	writeDeadline = 5 * time.Second
)

// ErrClosed is returned by Send and Recv after Close.
var ErrClosed = errors.New("remote: channel closed")

// Channel is the peer link the bridge talks through.
type Channel interface {
	Send(msg *Message) error
	Recv() (*Message, error)
	Close() error
}

// Options tune a Conn.
type Options struct {
	// CompressThreshold is the data chunk size from which payloads are
	// gzipped. Zero disables compression.
	CompressThreshold int
	Logger            *zap.Logger
}

// Conn frames Messages as newline-delimited JSON over a net.Conn.
type Conn struct {
	conn      net.Conn
	sc        *bufio.Scanner
	threshold int
	logger    *zap.Logger

	wmu    sync.Mutex
	closed bool
}

// NewConn wraps conn.
func NewConn(conn net.Conn, opts Options) *Conn {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	sc := bufio.NewScanner(conn)
	sc.Buffer(make([]byte, 64*1024), MaxMessageSize)
	return &Conn{
		conn:      conn,
		sc:        sc,
		threshold: opts.CompressThreshold,
		logger:    logger,
	}
}

// RemoteAddr returns the peer's network address.
func (c *Conn) RemoteAddr() net.Addr { return c.conn.RemoteAddr() }

// Send writes msg as one line. Data payloads are compressed when they reach
// the threshold. Safe for concurrent use.
func (c *Conn) Send(msg *Message) error {
	out := *msg
	if out.Type == TypeData && !out.Compressed && len(out.Data) > 0 {
		packed, ok, err := compression.Compress(out.Data, c.threshold)
		if err != nil {
			return fmt.Errorf("compress payload: %w", err)
		}
		if ok {
			c.logger.Debug("Compressed payload chunk",
				zap.Int("raw_size", len(out.Data)),
				zap.Int("compressed", len(packed)))
			out.Data = packed
			out.Compressed = true
		}
	}

	raw, err := out.Encode()
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	line := append(raw, '\n')

	c.wmu.Lock()
	defer c.wmu.Unlock()
	if c.closed {
		return ErrClosed
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
	_, err = c.conn.Write(line)
	_ = c.conn.SetWriteDeadline(time.Time{})
	if err != nil {
		return fmt.Errorf("write %s message: %w", out.Type, err)
	}
	return nil
}

// Recv reads the next message, inflating compressed payloads. It must only be
// called from one goroutine.
func (c *Conn) Recv() (*Message, error) {
	if !c.sc.Scan() {
		if err := c.sc.Err(); err != nil {
			if errors.Is(err, bufio.ErrTooLong) {
				return nil, fmt.Errorf("message exceeds %d bytes: %w", MaxMessageSize, err)
			}
			return nil, err
		}
		return nil, ErrClosed
	}

	msg, err := Decode(c.sc.Bytes())
	if err != nil {
		return nil, err
	}
	if msg.Compressed {
		data, err := compression.Decompress(msg.Data, MaxMessageSize)
		if err != nil {
			return nil, fmt.Errorf("decompress %s payload: %w", msg.ID, err)
		}
		msg.Data = data
		msg.Compressed = false
	}
	return msg, nil
}

// Close closes the underlying connection, unblocking Recv.
func (c *Conn) Close() error {
	c.wmu.Lock()
	c.closed = true
	c.wmu.Unlock()
	return c.conn.Close()
}
