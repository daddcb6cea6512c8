// Package conn owns per-connection read/write buffering and wires the
// resp parser to the keyspace engine, presenting the reactor a small
// on_readable/on_writable contract.
package conn

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/rpcpool/kvcore/hashdict"
	"github.com/rpcpool/kvcore/keyspace"
	"github.com/rpcpool/kvcore/metrics"
	"github.com/rpcpool/kvcore/resp"
	"github.com/rpcpool/kvcore/socket"
)

// Interest is the readiness a Conn wants to be polled for after handling
// one wakeup.
type Interest int

const (
	InterestReadOnly Interest = iota
	InterestReadWrite
	InterestClose
)

// compactionThreshold is the free-space floor below which a settled
// (between-commands) read buffer is shifted back to offset 0.
const compactionThreshold = 64 * 1024

const readGrowth = 4096

// Conn buffers one client's unparsed input and unsent output and drives
// the parser/engine pair across however many reactor wakeups it takes.
type Conn struct {
	sock socket.Socket
	dict *hashdict.Dict

	readBuf     []byte
	parseCursor int
	parser      resp.Parser

	writeBuf  []byte
	writeSent int

	halfClosed bool
}

// New wraps an already-accepted, non-blocking socket.
func New(sock socket.Socket, dict *hashdict.Dict) *Conn {
	return &Conn{
		sock:    sock,
		dict:    dict,
		readBuf: make([]byte, 0, readGrowth),
	}
}

// Socket returns the underlying socket, for registry bookkeeping.
func (c *Conn) Socket() socket.Socket { return c.sock }

// OnReadable drains every available byte off the socket, dispatches every
// complete command it can parse, and attempts a non-blocking write-buffer
// drain before reporting the interest the reactor should register next.
func (c *Conn) OnReadable() (Interest, error) {
	for {
		c.growReadBuf()
		n, err := socket.Read(c.sock, c.readBuf[len(c.readBuf):cap(c.readBuf)])
		if err != nil {
			if errors.Is(err, socket.ErrWouldBlock) {
				break
			}
			if errors.Is(err, socket.ErrClosed) {
				c.halfClosed = true
				break
			}
			return InterestClose, err
		}
		c.readBuf = c.readBuf[:len(c.readBuf)+n]
	}

	c.drainCommands()

	drained, err := c.flushWrite()
	if err != nil {
		return InterestClose, err
	}
	c.maybeCompact()

	if c.halfClosed && drained {
		return InterestClose, nil
	}
	if !drained {
		return InterestReadWrite, nil
	}
	return InterestReadOnly, nil
}

// OnWritable attempts to finish draining the write buffer.
func (c *Conn) OnWritable() (Interest, error) {
	drained, err := c.flushWrite()
	if err != nil {
		return InterestClose, err
	}
	if !drained {
		return InterestReadWrite, nil
	}
	if c.halfClosed {
		return InterestClose, nil
	}
	return InterestReadOnly, nil
}

// drainCommands runs the parser/engine loop until the buffer is exhausted
// of complete commands. Protocol errors resynchronize by scanning forward
// to the next '*' rather than tearing down the connection.
func (c *Conn) drainCommands() {
	for {
		cmd, next, status, err := c.parser.Feed(c.readBuf, c.parseCursor)
		switch status {
		case resp.NeedMore:
			c.parseCursor = next
			return
		case resp.Complete:
			reply := keyspace.Execute(c.dict, cmd)
			c.writeBuf = append(c.writeBuf, reply...)
			c.parseCursor = next
		case resp.Failed:
			c.writeBuf = append(c.writeBuf, []byte(fmt.Sprintf("-ERR Protocol error: %s\r\n", err))...)
			c.parser.Reset()
			c.resync(next)
			metrics.ProtocolResyncs.Inc()
		}
	}
}

// resync advances parseCursor to the next '*' strictly after from,
// restoring RESP framing after a malformed command.
func (c *Conn) resync(from int) {
	start := from + 1
	if start >= len(c.readBuf) {
		c.parseCursor = len(c.readBuf)
		return
	}
	if idx := bytes.IndexByte(c.readBuf[start:], '*'); idx >= 0 {
		c.parseCursor = start + idx
		return
	}
	c.parseCursor = len(c.readBuf)
}

// flushWrite writes as much of writeBuf as the socket accepts without
// blocking, reporting whether the buffer is now fully drained.
func (c *Conn) flushWrite() (bool, error) {
	for c.writeSent < len(c.writeBuf) {
		n, err := socket.Write(c.sock, c.writeBuf[c.writeSent:])
		if err != nil {
			if errors.Is(err, socket.ErrWouldBlock) {
				return false, nil
			}
			return false, err
		}
		c.writeSent += n
	}
	c.writeBuf = c.writeBuf[:0]
	c.writeSent = 0
	return true, nil
}

// growReadBuf ensures there is room for at least readGrowth more bytes
// before each read, reallocating if needed, even mid-command; Parser
// stores offsets rather than slices so this never invalidates its state.
func (c *Conn) growReadBuf() {
	if cap(c.readBuf)-len(c.readBuf) >= readGrowth {
		return
	}
	grown := make([]byte, len(c.readBuf), cap(c.readBuf)*2+readGrowth)
	copy(grown, c.readBuf)
	c.readBuf = grown
}

// maybeCompact shifts unparsed bytes back to offset 0 once the parser is
// between commands and the buffer's free space has crossed the
// compaction threshold, bounding how large the buffer grows under a
// long-lived connection issuing many pipelined commands.
func (c *Conn) maybeCompact() {
	if c.parser.Active() {
		return
	}
	if c.parseCursor == 0 {
		return
	}
	unparsed := len(c.readBuf) - c.parseCursor
	if unparsed == 0 || cap(c.readBuf)-len(c.readBuf) < compactionThreshold {
		copy(c.readBuf, c.readBuf[c.parseCursor:])
		c.readBuf = c.readBuf[:unparsed]
		c.parseCursor = 0
	}
}

// Close releases the underlying socket.
func (c *Conn) Close() error {
	return socket.Close(c.sock)
}
