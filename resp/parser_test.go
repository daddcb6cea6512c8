package resp

import (
	"bytes"
	"errors"
	"testing"
)

func TestFeedWholeBufferAtOnce(t *testing.T) {
	var p Parser
	buf := []byte("*3\r\n$3\r\nSET\r\n$3\r\nfoo\r\n$3\r\nbar\r\n")
	cmd, cursor, status, err := p.Feed(buf, 0)
	if status != Complete {
		t.Fatalf("status = %v, err = %v", status, err)
	}
	if string(cmd.Name) != "SET" {
		t.Errorf("Name = %q, want SET", cmd.Name)
	}
	if len(cmd.Args) != 2 || string(cmd.Args[0]) != "foo" || string(cmd.Args[1]) != "bar" {
		t.Errorf("Args = %q", cmd.Args)
	}
	if cursor != len(buf) {
		t.Errorf("cursor = %d, want %d", cursor, len(buf))
	}
}

func TestFeedByteAtATime(t *testing.T) {
	var p Parser
	full := []byte("*2\r\n$3\r\nDEL\r\n$3\r\nfoo\r\n")
	var buf []byte
	cursor := 0
	var got Command
	completed := 0
	for i := 0; i < len(full); i++ {
		buf = append(buf, full[i])
		for {
			cmd, next, status, err := p.Feed(buf, cursor)
			cursor = next
			if status == NeedMore {
				break
			}
			if status == Failed {
				t.Fatalf("unexpected failure at byte %d: %v", i, err)
			}
			got = cmd
			completed++
			break
		}
	}
	if completed != 1 {
		t.Fatalf("completed = %d, want 1", completed)
	}
	if string(got.Name) != "DEL" || len(got.Args) != 1 || string(got.Args[0]) != "foo" {
		t.Errorf("got = %+v", got)
	}
}

func TestFeedArbitraryChunking(t *testing.T) {
	full := []byte("*3\r\n$4\r\nLPOP\r\n$1\r\nk\r\n$2\r\nxy\r\n")
	chunkSizes := []int{1, 2, 3, 5, 7, 100}
	for _, size := range chunkSizes {
		var p Parser
		var buf []byte
		cursor := 0
		completed := 0
		var got Command
		for offset := 0; offset < len(full); offset += size {
			end := offset + size
			if end > len(full) {
				end = len(full)
			}
			buf = append(buf, full[offset:end]...)
			for {
				cmd, next, status, err := p.Feed(buf, cursor)
				cursor = next
				if status == NeedMore {
					break
				}
				if status == Failed {
					t.Fatalf("chunk size %d: unexpected failure: %v", size, err)
				}
				got = cmd
				completed++
				break
			}
		}
		if completed != 1 {
			t.Fatalf("chunk size %d: completed = %d, want 1", size, completed)
		}
		if string(got.Name) != "LPOP" {
			t.Errorf("chunk size %d: Name = %q", size, got.Name)
		}
	}
}

func TestFeedMalformedCRWithoutLF(t *testing.T) {
	var p Parser
	buf := []byte("*1\r\n$3\rXXX")
	_, _, status, err := p.Feed(buf, 0)
	if status != Failed {
		t.Fatalf("status = %v, want Failed", status)
	}
	if !errors.Is(err, ErrExpectedByte) {
		t.Errorf("err = %v, want ErrExpectedByte", err)
	}
}

func TestFeedUnexpectedLeadingByte(t *testing.T) {
	var p Parser
	buf := []byte("#1\r\n")
	_, _, status, err := p.Feed(buf, 0)
	if status != Failed {
		t.Fatalf("status = %v, want Failed", status)
	}
	if !errors.Is(err, ErrUnexpectedByte) {
		t.Errorf("err = %v, want ErrUnexpectedByte", err)
	}
}

func TestResyncAfterMalformedCommand(t *testing.T) {
	var p Parser
	bad := []byte("#garbage\r\n")
	_, _, status, _ := p.Feed(bad, 0)
	if status != Failed {
		t.Fatal("expected the malformed command to fail")
	}
	p.Reset()

	good := []byte("*2\r\n$3\r\nGET\r\n$3\r\nfoo\r\n")
	idx := bytes.IndexByte(good, '*')
	cmd, _, status, err := p.Feed(good, idx)
	if status != Complete {
		t.Fatalf("resync parse failed: %v", err)
	}
	if string(cmd.Name) != "GET" || string(cmd.Args[0]) != "foo" {
		t.Errorf("cmd = %+v", cmd)
	}
}

func TestPipelinedCommandsInOneBuffer(t *testing.T) {
	var p Parser
	buf := []byte("*3\r\n$3\r\nSET\r\n$3\r\nfoo\r\n$3\r\nbar\r\n*2\r\n$3\r\nGET\r\n$3\r\nfoo\r\n")
	cmd1, cursor, status, err := p.Feed(buf, 0)
	if status != Complete {
		t.Fatalf("first command: %v", err)
	}
	if string(cmd1.Name) != "SET" {
		t.Errorf("cmd1.Name = %q", cmd1.Name)
	}
	cmd2, _, status, err := p.Feed(buf, cursor)
	if status != Complete {
		t.Fatalf("second command: %v", err)
	}
	if string(cmd2.Name) != "GET" || string(cmd2.Args[0]) != "foo" {
		t.Errorf("cmd2 = %+v", cmd2)
	}
}
