package irc

import (
	"errors"
	"fmt"
	"net"
)

// ErrorKind names the operation a protocol failure belongs to. The values
// are the error names the web frontend already understands.
type ErrorKind string

const (
	RegistrationError   ErrorKind = "registrationError"
	VerificationError   ErrorKind = "verificationError"
	ChangePasswordError ErrorKind = "changePasswordError"
)

var (
	ErrTimeout       = errors.New("operation timed out")
	ErrSessionClosed = errors.New("session already disconnected")
	ErrNoClientIP    = errors.New("client IP is required")
)

// ProtocolError is a failure reported by the IRC daemon itself (ERROR,
// FAIL or a failure numeric). Message is the daemon's own text.
type ProtocolError struct {
	Kind    ErrorKind
	Message string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// TransportError is a socket-level failure: dial, read, write, timeout.
type TransportError struct {
	Op   string // "dial", "read", "write", "timeout", "cancel"
	Addr string
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("irc %s %s: %v", e.Op, e.Addr, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// IsKind reports whether err is a ProtocolError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var pe *ProtocolError
	return errors.As(err, &pe) && pe.Kind == kind
}

// IsTransport reports whether err is a TransportError.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

func wrapTransport(op, addr string, err error) error {
	if err == nil {
		return nil
	}
	var te *TransportError
	if errors.As(err, &te) {
		return err
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return &TransportError{Op: "timeout", Addr: addr, Err: ErrTimeout}
	}
	return &TransportError{Op: op, Addr: addr, Err: err}
}
