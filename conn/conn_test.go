package conn

import (
	"os"
	"testing"
	"time"

	"golang.org/x/sys/unix"

	"github.com/rpcpool/kvcore/hashdict"
	"github.com/rpcpool/kvcore/socket"
)

// newPipe returns a Conn-facing non-blocking socket and a plain blocking
// *os.File standing in for the peer, connected via a real socketpair so
// the conn package exercises its actual non-blocking read/write paths.
func newPipe(t *testing.T) (*Conn, *os.File) {
	t.Helper()
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		t.Fatalf("socketpair: %v", err)
	}
	if err := unix.SetNonblock(fds[0], true); err != nil {
		t.Fatalf("set non-blocking: %v", err)
	}
	c := New(socket.SocketForTest(fds[0]), hashdict.New(hashdict.DefaultWorkUnit))
	peer := os.NewFile(uintptr(fds[1]), "peer")
	t.Cleanup(func() { peer.Close() })
	return c, peer
}

func TestOnReadableSingleCommand(t *testing.T) {
	c, peer := newPipe(t)
	if _, err := peer.Write([]byte("*3\r\n$3\r\nSET\r\n$3\r\nfoo\r\n$3\r\nbar\r\n")); err != nil {
		t.Fatalf("peer write: %v", err)
	}
	time.Sleep(10 * time.Millisecond)

	interest, err := c.OnReadable()
	if err != nil {
		t.Fatalf("OnReadable: %v", err)
	}
	if interest != InterestReadOnly {
		t.Fatalf("interest = %v, want InterestReadOnly", interest)
	}

	buf := make([]byte, 64)
	peer.SetReadDeadline(time.Now().Add(time.Second))
	n, err := peer.Read(buf)
	if err != nil {
		t.Fatalf("peer read reply: %v", err)
	}
	if string(buf[:n]) != "+OK\r\n" {
		t.Fatalf("reply = %q, want +OK\\r\\n", buf[:n])
	}
}

func TestOnReadableHalfClose(t *testing.T) {
	c, peer := newPipe(t)
	peer.Close()
	time.Sleep(10 * time.Millisecond)

	interest, err := c.OnReadable()
	if err != nil {
		t.Fatalf("OnReadable: %v", err)
	}
	if interest != InterestClose {
		t.Fatalf("interest = %v, want InterestClose on half-close with empty write buffer", interest)
	}
}

func TestOnReadableResyncAfterMalformedCommand(t *testing.T) {
	c, peer := newPipe(t)
	payload := "#bad\r\n*2\r\n$3\r\nGET\r\n$3\r\nfoo\r\n"
	if _, err := peer.Write([]byte(payload)); err != nil {
		t.Fatalf("peer write: %v", err)
	}
	time.Sleep(10 * time.Millisecond)

	if _, err := c.OnReadable(); err != nil {
		t.Fatalf("OnReadable: %v", err)
	}

	buf := make([]byte, 256)
	peer.SetReadDeadline(time.Now().Add(time.Second))
	n, err := peer.Read(buf)
	if err != nil {
		t.Fatalf("peer read reply: %v", err)
	}
	got := string(buf[:n])
	if got != "-ERR Protocol error: unexpected byte '#'\r\n$-1\r\n" {
		t.Fatalf("reply = %q", got)
	}
}
