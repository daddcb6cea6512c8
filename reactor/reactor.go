// Package reactor implements the single-threaded, readiness-driven event
// loop: one epoll instance, one listening socket, and a sparse registry of
// client connections. Every wakeup drains each ready descriptor fully
// before returning to wait, since the poller is configured edge-triggered
// in spirit (accept/read loops run to WouldBlock rather than handling one
// event per wakeup).
package reactor

import (
	"context"
	"errors"

	"k8s.io/klog/v2"

	"github.com/rpcpool/kvcore/conn"
	"github.com/rpcpool/kvcore/hashdict"
	"github.com/rpcpool/kvcore/metrics"
	"github.com/rpcpool/kvcore/socket"
)

// DefaultMaxConnections bounds the connection registry when the caller
// does not override it.
const DefaultMaxConnections = 1000

const listenBacklog = 128
const maxEventsPerWait = 256
const waitTimeoutMillis = 1000

// Reactor owns the listening socket, the poller, and every accepted
// connection's state.
type Reactor struct {
	poller         *socket.Poller
	listener       socket.Socket
	dict           *hashdict.Dict
	conns          map[int]*conn.Conn
	maxConnections int
}

// Listen opens, configures and binds a listening socket at addr: TCP,
// non-blocking, SO_REUSEADDR, per the external-interface contract.
func Listen(addr string) (socket.Socket, error) {
	s, err := socket.OpenTCP()
	if err != nil {
		return socket.Socket{}, err
	}
	if err := socket.SetReuseAddr(s); err != nil {
		return socket.Socket{}, err
	}
	if err := socket.SetNonblocking(s); err != nil {
		return socket.Socket{}, err
	}
	if err := socket.Bind(s, addr); err != nil {
		return socket.Socket{}, err
	}
	if err := socket.Listen(s, listenBacklog); err != nil {
		return socket.Socket{}, err
	}
	return s, nil
}

// New builds a Reactor around an already-listening socket. maxConnections
// <= 0 selects DefaultMaxConnections.
func New(listener socket.Socket, dict *hashdict.Dict, maxConnections int) (*Reactor, error) {
	poller, err := socket.NewPoller()
	if err != nil {
		return nil, err
	}
	if err := poller.Register(listener.FD(), socket.Readable); err != nil {
		return nil, err
	}
	if maxConnections <= 0 {
		maxConnections = DefaultMaxConnections
	}
	return &Reactor{
		poller:         poller,
		listener:       listener,
		dict:           dict,
		conns:          make(map[int]*conn.Conn),
		maxConnections: maxConnections,
	}, nil
}

// Run blocks, servicing readiness events until ctx is cancelled.
func (r *Reactor) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		events, err := r.poller.Wait(waitTimeoutMillis, maxEventsPerWait)
		if err != nil {
			return err
		}
		for _, ev := range events {
			r.handleEvent(ev)
		}
	}
}

func (r *Reactor) handleEvent(ev socket.Event) {
	if ev.FD == r.listener.FD() {
		if ev.Flags.Error() || ev.Flags.Hangup() {
			klog.Errorf("reactor: listener socket reported error/hangup")
			return
		}
		r.acceptLoop()
		return
	}

	c, ok := r.conns[ev.FD]
	if !ok {
		// Event on a handle we no longer track; silent no-op per contract.
		return
	}

	if ev.Flags.Error() || ev.Flags.Hangup() {
		r.closeConn(c)
		return
	}

	if ev.Flags.Readable() {
		interest, err := c.OnReadable()
		if err != nil {
			klog.V(1).Infof("reactor: fd %d on_readable: %v", ev.FD, err)
		}
		if err != nil || interest == conn.InterestClose {
			r.closeConn(c)
			return
		}
		r.applyInterest(c, interest)
	}

	if ev.Flags.Writable() {
		interest, err := c.OnWritable()
		if err != nil {
			klog.V(1).Infof("reactor: fd %d on_writable: %v", ev.FD, err)
		}
		if err != nil || interest == conn.InterestClose {
			r.closeConn(c)
			return
		}
		r.applyInterest(c, interest)
	}
}

// acceptLoop drains the listener's backlog until WouldBlock, the
// edge-safe discipline the spec requires for the listening socket too.
func (r *Reactor) acceptLoop() {
	for {
		sock, peer, err := socket.Accept(r.listener)
		if err != nil {
			if errors.Is(err, socket.ErrWouldBlock) {
				return
			}
			klog.Errorf("reactor: accept: %v", err)
			return
		}
		if len(r.conns) >= r.maxConnections {
			socket.Close(sock)
			continue
		}
		if err := socket.SetNonblocking(sock); err != nil {
			klog.Errorf("reactor: set non-blocking on accepted socket: %v", err)
			socket.Close(sock)
			continue
		}
		if err := r.poller.Register(sock.FD(), socket.Readable); err != nil {
			klog.Errorf("reactor: register accepted socket: %v", err)
			socket.Close(sock)
			continue
		}
		c := conn.New(sock, r.dict)
		r.conns[sock.FD()] = c
		metrics.ConnectionsAccepted.Inc()
		metrics.ConnectionsActive.Set(float64(len(r.conns)))
		klog.V(2).Infof("reactor: accepted %s on fd %d", peer, sock.FD())
	}
}

func (r *Reactor) applyInterest(c *conn.Conn, interest conn.Interest) {
	want := socket.Readable
	if interest == conn.InterestReadWrite {
		want |= socket.Writable
	}
	if err := r.poller.Modify(c.Socket().FD(), want); err != nil {
		klog.Errorf("reactor: modify interest for fd %d: %v", c.Socket().FD(), err)
	}
}

func (r *Reactor) closeConn(c *conn.Conn) {
	fd := c.Socket().FD()
	_ = r.poller.Deregister(fd)
	_ = c.Close()
	delete(r.conns, fd)
	metrics.ConnectionsClosed.Inc()
	metrics.ConnectionsActive.Set(float64(len(r.conns)))
	klog.V(2).Infof("reactor: closed fd %d", fd)
}

// NumConnections reports the current registry size, exposed for metrics.
func (r *Reactor) NumConnections() int { return len(r.conns) }
