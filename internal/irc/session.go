package irc

import (
	"context"
	"errors"
	"io"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/ergochat/irc-go/ircmsg"

	"github.com/suprachat/ircbridge/internal/config"
)

// lingerTimeout bounds how long a closing session waits for the daemon to
// hang up after QUIT before the socket is torn down.
const lingerTimeout = 2 * time.Second

// Logger receives every protocol line at debug level. hclog.Logger
// satisfies it.
type Logger interface {
	Debug(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
}

// Driver runs account operations against the IRC daemon. Every operation
// opens its own connection; a Driver carries no per-operation state and
// may be shared between goroutines.
type Driver struct {
	cfg    *config.Config
	logger Logger
	dialer net.Dialer
}

// NewDriver creates a driver for the daemon described by cfg.
func NewDriver(cfg *config.Config, logger Logger) *Driver {
	return &Driver{cfg: cfg, logger: logger}
}

// flow is the operation-specific half of a session.
type flow interface {
	operation() string
	kind() ErrorKind
	// start runs once the connect sequence has been sent.
	start(s *session) error
	// handle is called for every line that is not PING, ERROR or FAIL.
	// It returns true once the operation has succeeded.
	handle(s *session, msg ircmsg.Message) (bool, error)
}

func (d *Driver) run(ctx context.Context, clientIP, nick string, f flow) (err error) {
	start := time.Now()
	defer func() { observe(f.operation(), start, err) }()

	ip, err := normalizeIP(clientIP)
	if err != nil {
		return err
	}

	if d.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.cfg.Timeout)
		defer cancel()
	}

	addr := net.JoinHostPort(d.cfg.Server, strconv.Itoa(d.cfg.Port))
	conn, err := d.dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		if ctx.Err() != nil {
			return contextError(addr, ctx.Err())
		}
		return wrapTransport("dial", addr, err)
	}

	s := newSession(conn, addr, d.logger)
	defer s.close()

	lines := make(chan inbound)
	readErrs := make(chan error, 1)
	go s.readLoop(lines, readErrs)

	if err := s.bootstrap(d.cfg.WebIRCPass, ip, nick); err != nil {
		return err
	}
	if err := f.start(s); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			s.disconnect()
			return contextError(addr, ctx.Err())
		case err := <-readErrs:
			if err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			s.disconnect()
			return wrapTransport("read", addr, err)
		case in := <-lines:
			done, err := s.dispatch(f, in)
			if err != nil || done {
				s.disconnect()
				return err
			}
		}
	}
}

// normalizeIP makes shorthand IPv6 addresses such as "::1" usable as a
// WEBIRC parameter, which may not start with a colon.
func normalizeIP(ip string) (string, error) {
	if ip == "" {
		return "", ErrNoClientIP
	}
	if strings.HasPrefix(ip, ":") {
		return "0" + ip, nil
	}
	return ip, nil
}

func contextError(addr string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &TransportError{Op: "timeout", Addr: addr, Err: ErrTimeout}
	}
	return &TransportError{Op: "cancel", Addr: addr, Err: err}
}

// session is one IRC conversation. Only the operation goroutine writes;
// readLoop owns the decoder.
type session struct {
	conn   net.Conn
	addr   string
	enc    encoder
	dec    *decoder
	logger Logger

	quitSent bool
	closed   bool

	stopping     chan struct{}
	readerExited chan struct{}
}

func newSession(conn net.Conn, addr string, logger Logger) *session {
	return &session{
		conn:         conn,
		addr:         addr,
		dec:          newDecoder(conn),
		logger:       logger,
		stopping:     make(chan struct{}),
		readerExited: make(chan struct{}),
	}
}

func (s *session) send(command string, params ...string) error {
	if s.closed {
		return &TransportError{Op: "write", Addr: s.addr, Err: ErrSessionClosed}
	}
	line, err := s.enc.push(ircmsg.MakeMessage(nil, "", command, params...))
	if err != nil {
		return &TransportError{Op: "encode", Addr: s.addr, Err: err}
	}
	s.logger.Debug("IRCd outgoing", "line", line)
	if err := s.enc.flush(s.conn); err != nil {
		return wrapTransport("write", s.addr, err)
	}
	linesTotal.WithLabelValues("out").Inc()
	return nil
}

func (s *session) bootstrap(webircPass, ip, nick string) error {
	prelude := [][]string{
		{"WEBIRC", webircPass, "*", ip, ip, "secure"},
		{"CAP", "LS", "302"},
		{"NICK", nick},
		{"USER", nick, "*", "*", nick},
	}
	for _, line := range prelude {
		if err := s.send(line[0], line[1:]...); err != nil {
			return err
		}
	}
	return nil
}

func (s *session) dispatch(f flow, in inbound) (bool, error) {
	linesTotal.WithLabelValues("in").Inc()
	s.logger.Debug("IRCd incoming", "line", in.raw)
	if in.err != nil {
		s.logger.Warn("dropping malformed line", "line", in.raw, "error", in.err)
		return false, nil
	}

	msg := in.msg
	msg.Command = strings.ToUpper(msg.Command)
	switch msg.Command {
	case "PING":
		return false, s.send("PONG", msg.Params...)
	case "ERROR", "FAIL":
		return false, &ProtocolError{Kind: f.kind(), Message: lastParam(msg)}
	}
	return f.handle(s, msg)
}

func (s *session) readLoop(out chan<- inbound, errc chan<- error) {
	defer close(s.readerExited)
	for {
		in, err := s.dec.next()
		if err != nil {
			errc <- err
			return
		}
		select {
		case out <- in:
		case <-s.stopping:
			// keep draining until the daemon hangs up
		}
	}
}

// disconnect sends QUIT once and closes the write side. Later sends fail.
func (s *session) disconnect() {
	if s.quitSent {
		return
	}
	s.quitSent = true
	if err := s.send("QUIT"); err != nil {
		s.logger.Debug("QUIT not delivered", "error", err)
	}
	s.closed = true
	if cw, ok := s.conn.(interface{ CloseWrite() error }); ok {
		cw.CloseWrite()
	}
}

func (s *session) close() {
	s.disconnect()
	close(s.stopping)
	s.conn.SetReadDeadline(time.Now().Add(lingerTimeout))
	<-s.readerExited
	s.conn.Close()
}
