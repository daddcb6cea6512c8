// Command kvcore-client is a line-oriented REPL: each line typed is split
// into whitespace-separated words, sent as a RESP array of bulk strings,
// and the raw reply is printed back.
package main

import (
	"bufio"
	"fmt"
	"net"
	"os"
	"strings"

	"github.com/urfave/cli/v2"
	"k8s.io/klog/v2"
)

func main() {
	app := &cli.App{
		Name:        "kvcore-client",
		Description: "line-oriented REPL client for kvcore-server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "connect",
				Aliases: []string{"c"},
				Usage:   "server address to connect to",
				Value:   "127.0.0.1:1234",
			},
		},
		Action: runRepl,
	}
	if err := app.Run(os.Args); err != nil {
		klog.Fatal(err)
	}
}

func runRepl(c *cli.Context) error {
	addr := c.String("connect")
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", addr, err)
	}
	defer conn.Close()

	fmt.Printf("connected to %s\n", addr)
	in := bufio.NewScanner(os.Stdin)
	out := bufio.NewReader(conn)

	for {
		fmt.Print("kvcore> ")
		if !in.Scan() {
			return in.Err()
		}
		line := strings.TrimSpace(in.Text())
		if line == "" {
			continue
		}
		if _, err := conn.Write(encodeRequest(strings.Fields(line))); err != nil {
			return fmt.Errorf("write: %w", err)
		}
		reply, err := readReply(out)
		if err != nil {
			return fmt.Errorf("read reply: %w", err)
		}
		fmt.Println(reply)
	}
}

// encodeRequest renders words as a RESP array of bulk strings, the wire
// form every command the engine accepts uses.
func encodeRequest(words []string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "*%d\r\n", len(words))
	for _, w := range words {
		fmt.Fprintf(&b, "$%d\r\n%s\r\n", len(w), w)
	}
	return []byte(b.String())
}

// readReply reads exactly one RESP reply and renders it as a human
// readable line; it understands simple strings, errors, integers and
// bulk strings (including the nil bulk string).
func readReply(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		return "", err
	}
	line = strings.TrimRight(line, "\r\n")
	if len(line) == 0 {
		return "", fmt.Errorf("empty reply line")
	}
	switch line[0] {
	case '+', '-', ':':
		return line[1:], nil
	case '$':
		n := 0
		if _, err := fmt.Sscanf(line[1:], "%d", &n); err != nil {
			return "", fmt.Errorf("malformed bulk header %q: %w", line, err)
		}
		if n < 0 {
			return "(nil)", nil
		}
		buf := make([]byte, n+2)
		if _, err := readFull(r, buf); err != nil {
			return "", err
		}
		return string(buf[:n]), nil
	default:
		return "", fmt.Errorf("unrecognized reply prefix %q", line[0])
	}
}

func readFull(r *bufio.Reader, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := r.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
