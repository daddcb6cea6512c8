package reactor

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/rpcpool/kvcore/hashdict"
	"github.com/rpcpool/kvcore/socket"
)

func startReactor(t *testing.T, maxConnections int) string {
	t.Helper()
	listener, err := Listen("127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	addr, err := socket.LocalAddr(listener)
	if err != nil {
		t.Fatalf("LocalAddr: %v", err)
	}
	r, err := New(listener, hashdict.New(hashdict.DefaultWorkUnit), maxConnections)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
		socket.Close(listener)
	})
	return addr
}

func TestReactorServesSetGet(t *testing.T) {
	addr := startReactor(t, DefaultMaxConnections)

	nc, err := net.DialTimeout("tcp", addr, time.Second)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer nc.Close()

	if _, err := nc.Write([]byte("*3\r\n$3\r\nSET\r\n$3\r\nfoo\r\n$3\r\nbar\r\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	nc.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 64)
	n, err := nc.Read(buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(buf[:n]) != "+OK\r\n" {
		t.Fatalf("reply = %q, want +OK\\r\\n", buf[:n])
	}

	if _, err := nc.Write([]byte("*2\r\n$3\r\nGET\r\n$3\r\nfoo\r\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	n, err = nc.Read(buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(buf[:n]) != "$3\r\nbar\r\n" {
		t.Fatalf("reply = %q, want $3\\r\\nbar\\r\\n", buf[:n])
	}
}

func TestReactorRejectsBeyondMaxConnections(t *testing.T) {
	addr := startReactor(t, 1)

	first, err := net.DialTimeout("tcp", addr, time.Second)
	if err != nil {
		t.Fatalf("dial first: %v", err)
	}
	defer first.Close()
	// Give the accept loop time to register the first connection before
	// the second dial races it.
	time.Sleep(50 * time.Millisecond)

	second, err := net.DialTimeout("tcp", addr, time.Second)
	if err != nil {
		t.Fatalf("dial second: %v", err)
	}
	defer second.Close()

	second.SetReadDeadline(time.Now().Add(time.Second))
	buf := make([]byte, 16)
	_, err = second.Read(buf)
	if err == nil {
		t.Fatal("expected the second connection to be closed immediately once capacity is exhausted")
	}
}
