package irc

import (
	"io"

	"github.com/ergochat/irc-go/ircmsg"
	"github.com/ergochat/irc-go/ircreader"
)

// encoder holds formatted outbound bytes until they reach the socket.
type encoder struct {
	pending []byte
}

// push formats msg and queues it. The returned line has no CRLF.
func (e *encoder) push(msg ircmsg.Message) (string, error) {
	line, err := msg.LineBytes()
	if err != nil {
		return "", err
	}
	e.pending = append(e.pending, line...)
	return trimCRLF(string(line)), nil
}

// flush writes the pending bytes; they are dropped only once the write
// succeeded.
func (e *encoder) flush(w io.Writer) error {
	if len(e.pending) == 0 {
		return nil
	}
	if _, err := w.Write(e.pending); err != nil {
		return err
	}
	e.pending = e.pending[:0]
	return nil
}

// decoder turns a byte stream into complete IRC lines. Partial lines are
// kept in the reader's buffer until their terminator arrives.
type decoder struct {
	r *ircreader.Reader
}

func newDecoder(r io.Reader) *decoder {
	return &decoder{r: ircreader.NewIRCReader(r)}
}

// inbound is one decoded line. err is set when the line was complete
// but did not parse; such lines are logged and dropped, never dispatched.
type inbound struct {
	raw string
	msg ircmsg.Message
	err error
}

// next returns the next complete non-empty line.
func (d *decoder) next() (inbound, error) {
	for {
		line, err := d.r.ReadLine()
		if err != nil {
			return inbound{}, err
		}
		raw := trimCRLF(string(line))
		if raw == "" {
			continue
		}
		msg, err := ircmsg.ParseLine(raw)
		if err == ircmsg.ErrorLineIsEmpty {
			continue
		}
		return inbound{raw: raw, msg: msg, err: err}, nil
	}
}

func trimCRLF(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}

// lastParam is the daemon's human readable text on ERROR/FAIL lines.
func lastParam(msg ircmsg.Message) string {
	if len(msg.Params) == 0 {
		return ""
	}
	return msg.Params[len(msg.Params)-1]
}

func hasParam(msg ircmsg.Message, want string) bool {
	for _, p := range msg.Params {
		if p == want {
			return true
		}
	}
	return false
}
