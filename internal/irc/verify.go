package irc

import (
	"context"

	"github.com/ergochat/irc-go/ircmsg"
)

// VerifyRequest confirms a pending account with the code the daemon
// mailed to the user.
type VerifyRequest struct {
	ClientIP string
	Username string
	Code     string
}

type verifyFlow struct {
	req VerifyRequest
}

// Verify sends VERIFY right after the connect sequence and returns once
// the daemon answers VERIFY SUCCESS.
func (d *Driver) Verify(ctx context.Context, req VerifyRequest) error {
	return d.run(ctx, req.ClientIP, req.Username, &verifyFlow{req: req})
}

func (f *verifyFlow) operation() string { return "verify" }
func (f *verifyFlow) kind() ErrorKind   { return VerificationError }

func (f *verifyFlow) start(s *session) error {
	return s.send("VERIFY", f.req.Username, f.req.Code)
}

func (f *verifyFlow) handle(s *session, msg ircmsg.Message) (bool, error) {
	return msg.Command == "VERIFY" && hasParam(msg, "SUCCESS"), nil
}
