package socket

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Interest is a bitmask of readiness the poller should report on.
type Interest uint32

const (
	Readable Interest = 1 << iota
	Writable
)

// Flags reports what a wakeup observed for one registered descriptor;
// Error and Hangup may be set regardless of which Interest was requested.
type Flags uint32

const (
	FlagReadable Flags = 1 << iota
	FlagWritable
	FlagError
	FlagHangup
)

func (f Flags) Readable() bool { return f&FlagReadable != 0 }
func (f Flags) Writable() bool { return f&FlagWritable != 0 }
func (f Flags) Error() bool    { return f&FlagError != 0 }
func (f Flags) Hangup() bool   { return f&FlagHangup != 0 }

// Event pairs a ready file descriptor with the flags observed for it.
type Event struct {
	FD    int
	Flags Flags
}

// Poller wraps a single epoll instance.
type Poller struct {
	epfd int
}

// NewPoller creates a fresh epoll instance.
func NewPoller() (*Poller, error) {
	epfd, err := unix.EpollCreate1(0)
	if err != nil {
		return nil, fmt.Errorf("socket: epoll_create1: %w", err)
	}
	return &Poller{epfd: epfd}, nil
}

func toEpollEvents(interest Interest) uint32 {
	var ev uint32
	if interest&Readable != 0 {
		ev |= unix.EPOLLIN
	}
	if interest&Writable != 0 {
		ev |= unix.EPOLLOUT
	}
	return ev
}

// Register starts monitoring fd for interest.
func (p *Poller) Register(fd int, interest Interest) error {
	event := unix.EpollEvent{Events: toEpollEvents(interest), Fd: int32(fd)}
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, fd, &event); err != nil {
		return fmt.Errorf("socket: epoll_ctl add fd %d: %w", fd, err)
	}
	return nil
}

// Modify changes the interest set for an already-registered fd.
func (p *Poller) Modify(fd int, interest Interest) error {
	event := unix.EpollEvent{Events: toEpollEvents(interest), Fd: int32(fd)}
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_MOD, fd, &event); err != nil {
		return fmt.Errorf("socket: epoll_ctl mod fd %d: %w", fd, err)
	}
	return nil
}

// Deregister stops monitoring fd. Safe to call even if the kernel has
// already dropped the fd (e.g. after close); errors are ignored by the
// reactor in that case.
func (p *Poller) Deregister(fd int) error {
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil); err != nil {
		return fmt.Errorf("socket: epoll_ctl del fd %d: %w", fd, err)
	}
	return nil
}

// Wait blocks up to timeoutMillis (-1 for indefinitely) and returns the
// descriptors that became ready, reporting at most maxEvents of them per
// call.
func (p *Poller) Wait(timeoutMillis int, maxEvents int) ([]Event, error) {
	buf := make([]unix.EpollEvent, maxEvents)
	n, err := unix.EpollWait(p.epfd, buf, timeoutMillis)
	if err != nil {
		if err == unix.EINTR {
			return nil, nil
		}
		return nil, fmt.Errorf("socket: epoll_wait: %w", err)
	}
	events := make([]Event, n)
	for i := 0; i < n; i++ {
		var flags Flags
		raw := buf[i].Events
		if raw&unix.EPOLLIN != 0 {
			flags |= FlagReadable
		}
		if raw&unix.EPOLLOUT != 0 {
			flags |= FlagWritable
		}
		if raw&unix.EPOLLERR != 0 {
			flags |= FlagError
		}
		if raw&(unix.EPOLLHUP|unix.EPOLLRDHUP) != 0 {
			flags |= FlagHangup
		}
		events[i] = Event{FD: int(buf[i].Fd), Flags: flags}
	}
	return events, nil
}

// Close releases the epoll instance.
func (p *Poller) Close() error {
	return unix.Close(p.epfd)
}
