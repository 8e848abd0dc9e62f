// Package account runs the account operations the web backend needs on
// the IRC network: it checks input, drives the IRC session and keeps an
// audit trail of every attempt.
package account

import (
	"context"
	"strings"

	"github.com/hashicorp/go-hclog"

	"github.com/suprachat/ircbridge/internal/config"
	"github.com/suprachat/ircbridge/internal/irc"
)

// Driver is the IRC side of the service. *irc.Driver implements it.
type Driver interface {
	Register(ctx context.Context, req irc.RegisterRequest) error
	Verify(ctx context.Context, req irc.VerifyRequest) error
	ChangePassword(ctx context.Context, req irc.ChangePasswordRequest) error
}

// Auditor records the outcome of each operation. *storage.AuditLog
// implements it.
type Auditor interface {
	Record(operation, nick, outcome string) error
}

// InvalidNickError is returned before any connection is made when the
// requested nick contains forbidden characters.
type InvalidNickError struct {
	Nick  string
	Chars []string
}

func (e *InvalidNickError) Error() string {
	return "Nick contains forbidden characters: " + strings.Join(e.Chars, ", ")
}

// Service wires nick validation, the IRC driver and the audit trail.
type Service struct {
	cfg    *config.Config
	driver Driver
	audit  Auditor
	logger hclog.Logger
}

// NewService creates a Service. audit may be nil.
func NewService(cfg *config.Config, driver Driver, audit Auditor, logger hclog.Logger) *Service {
	return &Service{cfg: cfg, driver: driver, audit: audit, logger: logger}
}

// Register creates nick on the IRC network for the user at clientIP.
func (s *Service) Register(ctx context.Context, clientIP, nick, email, password string) error {
	if bad, chars := irc.ValidateNick(nick); bad {
		err := &InvalidNickError{Nick: nick, Chars: chars}
		s.record("register", nick, err)
		return err
	}

	err := s.driver.Register(ctx, irc.RegisterRequest{
		ClientIP: clientIP,
		Username: nick,
		Email:    email,
		Password: password,
	})
	s.record("register", nick, err)
	return err
}

// Verify confirms nick's pending registration with code.
func (s *Service) Verify(ctx context.Context, clientIP, nick, code string) error {
	err := s.driver.Verify(ctx, irc.VerifyRequest{
		ClientIP: clientIP,
		Username: nick,
		Code:     code,
	})
	s.record("verify", nick, err)
	return err
}

// ChangePassword resets target's password. The IRC session authenticates
// with the configured admin account, never with the caller's credentials.
func (s *Service) ChangePassword(ctx context.Context, clientIP, target, newPassword string) error {
	if err := s.cfg.ValidateOperator(); err != nil {
		return err
	}

	err := s.driver.ChangePassword(ctx, irc.ChangePasswordRequest{
		ClientIP:         clientIP,
		OperatorUsername: s.cfg.AdminUser,
		OperatorPassword: s.cfg.AdminPass,
		TargetUser:       target,
		NewPassword:      newPassword,
	})
	s.record("passwd", target, err)
	return err
}

func (s *Service) record(operation, nick string, err error) {
	outcome := "success"
	if err != nil {
		outcome = err.Error()
		s.logger.Warn("account operation failed", "operation", operation, "nick", nick, "error", err)
	} else {
		s.logger.Info("account operation succeeded", "operation", operation, "nick", nick)
	}

	if s.audit == nil {
		return
	}
	if aerr := s.audit.Record(operation, nick, outcome); aerr != nil {
		s.logger.Error("could not write audit entry", "error", aerr)
	}
}
