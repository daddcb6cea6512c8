// Package socket is the external collaborator the reactor depends on: a
// thin non-blocking TCP wrapper over raw file descriptors, plus the
// readiness-registration primitives (register/modify/wait) backing the
// event loop. All syscalls go through golang.org/x/sys/unix.
package socket

import (
	"errors"
	"fmt"
	"net"

	"golang.org/x/sys/unix"
)

// ErrWouldBlock reports that a non-blocking operation made no progress and
// the caller should wait for readiness before retrying.
var ErrWouldBlock = errors.New("socket: would block")

// ErrClosed reports that the peer closed its end of the connection (a read
// returning zero bytes).
var ErrClosed = errors.New("socket: closed by peer")

// Socket wraps a raw file descriptor for a TCP connection or listener.
type Socket struct {
	fd int
}

// FD returns the raw file descriptor, used as the registry key and the
// epoll interest target.
func (s Socket) FD() int { return s.fd }

// SocketForTest wraps an already-open file descriptor (e.g. one half of a
// unix.Socketpair) as a Socket, for tests that want to drive the
// conn/reactor packages against a real, already-connected descriptor
// without going through OpenTCP/Accept.
func SocketForTest(fd int) Socket { return Socket{fd: fd} }

// OpenTCP creates a fresh IPv4 TCP socket, unbound and blocking.
func OpenTCP() (Socket, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, unix.IPPROTO_TCP)
	if err != nil {
		return Socket{}, fmt.Errorf("socket: open: %w", err)
	}
	return Socket{fd: fd}, nil
}

// SetReuseAddr sets SO_REUSEADDR so a restarted server can rebind a
// recently-closed listening port immediately.
func SetReuseAddr(s Socket) error {
	if err := unix.SetsockoptInt(s.fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		return fmt.Errorf("socket: set SO_REUSEADDR: %w", err)
	}
	return nil
}

// SetNonblocking puts the file descriptor in O_NONBLOCK mode; every
// subsequent Read/Write/Accept on it may return ErrWouldBlock instead of
// blocking the reactor thread.
func SetNonblocking(s Socket) error {
	if err := unix.SetNonblock(s.fd, true); err != nil {
		return fmt.Errorf("socket: set non-blocking: %w", err)
	}
	return nil
}

// Bind binds s to addr, a "host:port" string.
func Bind(s Socket, addr string) error {
	sa, err := resolveSockaddr(addr)
	if err != nil {
		return err
	}
	if err := unix.Bind(s.fd, sa); err != nil {
		return fmt.Errorf("socket: bind %s: %w", addr, err)
	}
	return nil
}

// Listen marks s as a listening socket with the given backlog.
func Listen(s Socket, backlog int) error {
	if err := unix.Listen(s.fd, backlog); err != nil {
		return fmt.Errorf("socket: listen: %w", err)
	}
	return nil
}

// Accept accepts one pending connection off a listening socket, returning
// ErrWouldBlock when none is pending. The caller is expected to loop until
// ErrWouldBlock, per the reactor's drain-fully-on-wakeup discipline.
func Accept(listener Socket) (Socket, string, error) {
	nfd, sa, err := unix.Accept(listener.fd)
	if err != nil {
		if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EWOULDBLOCK) {
			return Socket{}, "", ErrWouldBlock
		}
		return Socket{}, "", fmt.Errorf("socket: accept: %w", err)
	}
	return Socket{fd: nfd}, peerString(sa), nil
}

// Connect initiates an outbound connection to addr. On a non-blocking
// socket this commonly returns EINPROGRESS, surfaced here as
// ErrWouldBlock; the caller waits for a writable event to confirm.
func Connect(s Socket, addr string) error {
	sa, err := resolveSockaddr(addr)
	if err != nil {
		return err
	}
	if err := unix.Connect(s.fd, sa); err != nil {
		if errors.Is(err, unix.EINPROGRESS) {
			return ErrWouldBlock
		}
		return fmt.Errorf("socket: connect %s: %w", addr, err)
	}
	return nil
}

// Read reads into buf, translating EAGAIN/EWOULDBLOCK to ErrWouldBlock and
// a zero-length successful read to ErrClosed (peer half-close).
func Read(s Socket, buf []byte) (int, error) {
	n, err := unix.Read(s.fd, buf)
	if err != nil {
		if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EWOULDBLOCK) {
			return 0, ErrWouldBlock
		}
		return 0, fmt.Errorf("socket: read: %w", err)
	}
	if n == 0 {
		return 0, ErrClosed
	}
	return n, nil
}

// Write writes buf, translating EAGAIN/EWOULDBLOCK to ErrWouldBlock.
func Write(s Socket, buf []byte) (int, error) {
	n, err := unix.Write(s.fd, buf)
	if err != nil {
		if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EWOULDBLOCK) {
			return 0, ErrWouldBlock
		}
		return 0, fmt.Errorf("socket: write: %w", err)
	}
	return n, nil
}

// Close releases the file descriptor.
func Close(s Socket) error {
	return unix.Close(s.fd)
}

func resolveSockaddr(addr string) (unix.Sockaddr, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, fmt.Errorf("socket: parse address %q: %w", addr, err)
	}
	ip := net.ParseIP(host)
	if ip == nil {
		resolved, err := net.ResolveIPAddr("ip4", host)
		if err != nil {
			return nil, fmt.Errorf("socket: resolve host %q: %w", host, err)
		}
		ip = resolved.IP
	}
	ip4 := ip.To4()
	if ip4 == nil {
		return nil, fmt.Errorf("socket: %q is not an IPv4 address", host)
	}
	port, err := net.LookupPort("tcp", portStr)
	if err != nil {
		return nil, fmt.Errorf("socket: parse port %q: %w", portStr, err)
	}
	sa := &unix.SockaddrInet4{Port: port}
	copy(sa.Addr[:], ip4)
	return sa, nil
}

// LocalAddr returns the "host:port" the kernel bound s to, useful after
// binding to port 0 for an OS-assigned ephemeral port.
func LocalAddr(s Socket) (string, error) {
	sa, err := unix.Getsockname(s.fd)
	if err != nil {
		return "", fmt.Errorf("socket: getsockname: %w", err)
	}
	sa4, ok := sa.(*unix.SockaddrInet4)
	if !ok {
		return "", fmt.Errorf("socket: getsockname returned non-IPv4 address")
	}
	return peerString(sa4), nil
}

func peerString(sa unix.Sockaddr) string {
	sa4, ok := sa.(*unix.SockaddrInet4)
	if !ok {
		return "unknown"
	}
	ip := net.IPv4(sa4.Addr[0], sa4.Addr[1], sa4.Addr[2], sa4.Addr[3])
	return fmt.Sprintf("%s:%d", ip.String(), sa4.Port)
}
