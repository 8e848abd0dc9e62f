package irc

import (
	"context"
	"strings"

	"github.com/ergochat/irc-go/ircmsg"
)

const capAccountRegistration = "draft/account-registration"

// RegisterRequest creates a new account on the daemon. Username must have
// passed ValidateNick already.
type RegisterRequest struct {
	ClientIP string
	Username string
	Email    string
	Password string
}

type registerState int

const (
	registerAwaitingCapLS registerState = iota
	registerAwaitingCapAck
	registerAwaitingWelcome
)

type registerFlow struct {
	req   RegisterRequest
	state registerState
}

// Register creates the account req.Username through the
// draft/account-registration capability. It returns once the daemon
// welcomes the new connection.
func (d *Driver) Register(ctx context.Context, req RegisterRequest) error {
	return d.run(ctx, req.ClientIP, req.Username, &registerFlow{req: req})
}

func (f *registerFlow) operation() string { return "register" }
func (f *registerFlow) kind() ErrorKind   { return RegistrationError }
func (f *registerFlow) start(*session) error {
	return nil
}

func (f *registerFlow) handle(s *session, msg ircmsg.Message) (bool, error) {
	switch f.state {
	case registerAwaitingCapLS:
		if msg.Command == "CAP" && !hasParam(msg, "ACK") && advertises(msg, capAccountRegistration) {
			f.state = registerAwaitingCapAck
			return false, s.send("CAP", "REQ", capAccountRegistration)
		}

	case registerAwaitingCapAck:
		if msg.Command != "CAP" {
			break
		}
		if hasParam(msg, "NAK") {
			return false, &ProtocolError{Kind: RegistrationError, Message: "capability " + capAccountRegistration + " was refused"}
		}
		if hasParam(msg, "ACK") {
			f.state = registerAwaitingWelcome
			if err := s.send("REGISTER", "*", f.req.Email, f.req.Password); err != nil {
				return false, err
			}
			return false, s.send("CAP", "END")
		}

	case registerAwaitingWelcome:
		if msg.Command == "001" {
			return true, nil
		}
	}
	return false, nil
}

// advertises reports whether any parameter of a CAP line mentions capName.
func advertises(msg ircmsg.Message, capName string) bool {
	for _, p := range msg.Params {
		if strings.Contains(p, capName) {
			return true
		}
	}
	return false
}
