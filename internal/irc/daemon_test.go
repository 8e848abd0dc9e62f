package irc

import (
	"bufio"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/suprachat/ircbridge/internal/config"
)

// daemonConn is the server side of one scripted IRC session.
type daemonConn struct {
	t    *testing.T
	conn net.Conn
	r    *bufio.Reader
	got  []string
}

func (c *daemonConn) readLine() (string, error) {
	c.conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	line, err := c.r.ReadString('\n')
	if err != nil {
		return "", err
	}
	line = strings.TrimRight(line, "\r\n")
	c.got = append(c.got, line)
	return line, nil
}

// expect reads until a line starting with prefix arrives.
func (c *daemonConn) expect(prefix string) bool {
	for {
		line, err := c.readLine()
		if err != nil {
			c.t.Errorf("waiting for %q: %v (got %q)", prefix, err, c.got)
			return false
		}
		if strings.HasPrefix(line, prefix) {
			return true
		}
	}
}

// send writes all lines in a single write, so they arrive as one batch.
func (c *daemonConn) send(lines ...string) {
	var b strings.Builder
	for _, l := range lines {
		b.WriteString(l)
		b.WriteString("\r\n")
	}
	if _, err := c.conn.Write([]byte(b.String())); err != nil {
		c.t.Errorf("daemon write: %v", err)
	}
}

// startDaemon accepts one connection and runs script on it. Afterwards it
// records everything the bridge sends until the bridge hangs up, then
// delivers the full transcript.
func startDaemon(t *testing.T, script func(c *daemonConn)) (*config.Config, <-chan []string) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { ln.Close() })

	transcript := make(chan []string, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			transcript <- nil
			return
		}
		defer conn.Close()

		c := &daemonConn{t: t, conn: conn, r: bufio.NewReader(conn)}
		script(c)
		for {
			if _, err := c.readLine(); err != nil {
				break
			}
		}
		transcript <- c.got
	}()

	cfg := &config.Config{
		Server:     "127.0.0.1",
		Port:       ln.Addr().(*net.TCPAddr).Port,
		WebIRCPass: "webircpw",
		OperModes:  config.DefaultOperModes,
		Timeout:    5 * time.Second,
	}
	return cfg, transcript
}

func waitTranscript(t *testing.T, ch <-chan []string) []string {
	t.Helper()
	select {
	case got := <-ch:
		return got
	case <-time.After(10 * time.Second):
		t.Fatal("daemon did not finish")
		return nil
	}
}

func newTestDriver(cfg *config.Config) *Driver {
	return NewDriver(cfg, hclog.NewNullLogger())
}

func indexOf(lines []string, want string) int {
	for i, l := range lines {
		if l == want {
			return i
		}
	}
	return -1
}

// assertSingleQuit checks that exactly one QUIT was sent and that it was
// the last thing the bridge wrote.
func assertSingleQuit(t *testing.T, lines []string) {
	t.Helper()
	quits := 0
	for _, l := range lines {
		if l == "QUIT" {
			quits++
		}
	}
	if quits != 1 {
		t.Errorf("Expected exactly one QUIT, got %d in %q", quits, lines)
	}
	if len(lines) == 0 || lines[len(lines)-1] != "QUIT" {
		t.Errorf("Expected QUIT to be the last line, got %q", lines)
	}
}

func assertPrelude(t *testing.T, lines []string, ip, nick string) {
	t.Helper()
	want := []string{
		"WEBIRC webircpw * " + ip + " " + ip + " secure",
		"CAP LS 302",
		"NICK " + nick,
		"USER " + nick + " * * " + nick,
	}
	if len(lines) < len(want) {
		t.Fatalf("Expected connect sequence, got %q", lines)
	}
	for i, w := range want {
		if lines[i] != w {
			t.Errorf("Line %d: expected %q, got %q", i, w, lines[i])
		}
	}
}
