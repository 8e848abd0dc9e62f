package irc

import (
	"context"
	"encoding/base64"
	"strings"

	"github.com/emersion/go-sasl"
	"github.com/ergochat/irc-go/ircmsg"

	"github.com/suprachat/ircbridge/internal/config"
)

// saslChunkSize is the longest AUTHENTICATE payload a single line carries.
const saslChunkSize = 400

// ChangePasswordRequest resets TargetUser's password. The session
// authenticates as the operator account, never as the end user.
type ChangePasswordRequest struct {
	ClientIP         string
	OperatorUsername string
	OperatorPassword string
	TargetUser       string
	NewPassword      string
}

type passwdState int

const (
	passwdAwaitingCapLS passwdState = iota
	passwdAwaitingCapAck
	passwdAwaitingChallenge
	passwdAwaitingSASLResult
	passwdAwaitingOperMode
)

type passwdFlow struct {
	req       ChangePasswordRequest
	operName  string
	operPass  string
	operModes string
	state     passwdState
}

// ChangePassword authenticates with SASL PLAIN, elevates with OPER and
// asks NickServ to set the new password. It returns as soon as the
// PASSWD command has been sent; NickServ's reply is not awaited.
func (d *Driver) ChangePassword(ctx context.Context, req ChangePasswordRequest) error {
	f := &passwdFlow{
		req:       req,
		operName:  d.cfg.OperName,
		operPass:  d.cfg.OperPass,
		operModes: d.cfg.OperModes,
	}
	if f.operName == "" {
		f.operName, f.operPass = req.OperatorUsername, req.OperatorPassword
	}
	if f.operModes == "" {
		f.operModes = config.DefaultOperModes
	}
	return d.run(ctx, req.ClientIP, req.OperatorUsername, f)
}

func (f *passwdFlow) operation() string { return "change_password" }
func (f *passwdFlow) kind() ErrorKind   { return ChangePasswordError }
func (f *passwdFlow) start(*session) error {
	return nil
}

func (f *passwdFlow) handle(s *session, msg ircmsg.Message) (bool, error) {
	switch f.state {
	case passwdAwaitingCapLS:
		if msg.Command == "CAP" && !hasParam(msg, "ACK") && advertises(msg, "sasl") {
			f.state = passwdAwaitingCapAck
			return false, s.send("CAP", "REQ", "sasl")
		}

	case passwdAwaitingCapAck:
		if msg.Command != "CAP" {
			break
		}
		if hasParam(msg, "NAK") {
			return false, f.fail("capability sasl was refused")
		}
		if hasParam(msg, "ACK") {
			f.state = passwdAwaitingChallenge
			return false, s.send("AUTHENTICATE", "PLAIN")
		}

	case passwdAwaitingChallenge:
		if msg.Command == "AUTHENTICATE" && hasParam(msg, "+") {
			payload, err := f.plainResponse()
			if err != nil {
				return false, f.fail(err.Error())
			}
			f.state = passwdAwaitingSASLResult
			return false, sendAuthenticate(s, payload)
		}

	case passwdAwaitingSASLResult:
		switch msg.Command {
		case "903": // RPL_SASLSUCCESS
			f.state = passwdAwaitingOperMode
			if err := s.send("CAP", "END"); err != nil {
				return false, err
			}
			return false, s.send("OPER", f.operName, f.operPass)
		case "904", "905", "906": // ERR_SASLFAIL, ERR_SASLTOOLONG, ERR_SASLABORTED
			return false, f.fail(lastParam(msg))
		}

	case passwdAwaitingOperMode:
		switch msg.Command {
		case "464", "491": // ERR_PASSWDMISMATCH, ERR_NOOPERHOST
			return false, f.fail(lastParam(msg))
		case "MODE":
			if hasParam(msg, f.operModes) {
				return true, s.send("PRIVMSG", "NICKSERV", "PASSWD "+f.req.TargetUser+" "+f.req.NewPassword)
			}
		}
	}
	return false, nil
}

// plainResponse is the base64 of "user\0user\0password".
func (f *passwdFlow) plainResponse() (string, error) {
	client := sasl.NewPlainClient(f.req.OperatorUsername, f.req.OperatorUsername, f.req.OperatorPassword)
	_, ir, err := client.Start()
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(ir), nil
}

func (f *passwdFlow) fail(message string) error {
	return &ProtocolError{Kind: ChangePasswordError, Message: strings.TrimSpace(message)}
}

// sendAuthenticate splits payload into 400 byte AUTHENTICATE lines. A
// payload that is an exact multiple of the chunk size ends with "+".
func sendAuthenticate(s *session, payload string) error {
	for len(payload) >= saslChunkSize {
		if err := s.send("AUTHENTICATE", payload[:saslChunkSize]); err != nil {
			return err
		}
		payload = payload[saslChunkSize:]
	}
	if payload == "" {
		payload = "+"
	}
	return s.send("AUTHENTICATE", payload)
}
