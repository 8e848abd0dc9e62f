package account

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/hashicorp/go-hclog"

	"github.com/suprachat/ircbridge/internal/config"
	"github.com/suprachat/ircbridge/internal/irc"
	"github.com/suprachat/ircbridge/internal/storage"
)

type fakeDriver struct {
	registers []irc.RegisterRequest
	verifies  []irc.VerifyRequest
	passwds   []irc.ChangePasswordRequest
	err       error
}

func (d *fakeDriver) Register(_ context.Context, req irc.RegisterRequest) error {
	d.registers = append(d.registers, req)
	return d.err
}

func (d *fakeDriver) Verify(_ context.Context, req irc.VerifyRequest) error {
	d.verifies = append(d.verifies, req)
	return d.err
}

func (d *fakeDriver) ChangePassword(_ context.Context, req irc.ChangePasswordRequest) error {
	d.passwds = append(d.passwds, req)
	return d.err
}

type fakeAuditor struct {
	entries []string
	err     error
}

func (a *fakeAuditor) Record(operation, nick, outcome string) error {
	a.entries = append(a.entries, operation+" "+nick+" "+outcome)
	return a.err
}

func newTestService(driver Driver, audit Auditor) *Service {
	cfg := &config.Config{AdminUser: "admin", AdminPass: "adminpass"}
	return NewService(cfg, driver, audit, hclog.NewNullLogger())
}

func TestRegisterRejectsForbiddenNick(t *testing.T) {
	driver := &fakeDriver{}
	audit := &fakeAuditor{}
	svc := newTestService(driver, audit)

	err := svc.Register(context.Background(), "203.0.113.7", "al.ice-", "a@example.com", "pw")

	var nerr *InvalidNickError
	if !errors.As(err, &nerr) {
		t.Fatalf("Expected InvalidNickError, got %v", err)
	}
	if !reflect.DeepEqual(nerr.Chars, []string{".", "-"}) {
		t.Errorf("Unexpected chars %q", nerr.Chars)
	}
	if err.Error() != "Nick contains forbidden characters: ., -" {
		t.Errorf("Unexpected message %q", err.Error())
	}
	if len(driver.registers) != 0 {
		t.Errorf("Driver must not be called for an invalid nick")
	}
	if len(audit.entries) != 1 || !strings.HasPrefix(audit.entries[0], "register al.ice-") {
		t.Errorf("Expected one audit entry, got %q", audit.entries)
	}
}

func TestRegisterPassesThrough(t *testing.T) {
	driver := &fakeDriver{}
	audit := &fakeAuditor{}
	svc := newTestService(driver, audit)

	if err := svc.Register(context.Background(), "203.0.113.7", "alice", "a@example.com", "pw"); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	want := irc.RegisterRequest{ClientIP: "203.0.113.7", Username: "alice", Email: "a@example.com", Password: "pw"}
	if len(driver.registers) != 1 || driver.registers[0] != want {
		t.Errorf("Unexpected driver calls %+v", driver.registers)
	}
	if len(audit.entries) != 1 || audit.entries[0] != "register alice success" {
		t.Errorf("Unexpected audit entries %q", audit.entries)
	}
}

func TestVerifyReturnsProtocolError(t *testing.T) {
	perr := &irc.ProtocolError{Kind: irc.VerificationError, Message: "Invalid code"}
	driver := &fakeDriver{err: perr}
	audit := &fakeAuditor{}
	svc := newTestService(driver, audit)

	err := svc.Verify(context.Background(), "203.0.113.7", "alice", "nope")
	if !irc.IsKind(err, irc.VerificationError) {
		t.Fatalf("Expected verificationError, got %v", err)
	}
	if len(audit.entries) != 1 || !strings.Contains(audit.entries[0], "Invalid code") {
		t.Errorf("Expected failure in audit trail, got %q", audit.entries)
	}
}

func TestChangePasswordUsesConfiguredOperator(t *testing.T) {
	driver := &fakeDriver{}
	svc := newTestService(driver, nil)

	if err := svc.ChangePassword(context.Background(), "203.0.113.7", "bob", "newpass456"); err != nil {
		t.Fatalf("ChangePassword failed: %v", err)
	}

	want := irc.ChangePasswordRequest{
		ClientIP:         "203.0.113.7",
		OperatorUsername: "admin",
		OperatorPassword: "adminpass",
		TargetUser:       "bob",
		NewPassword:      "newpass456",
	}
	if len(driver.passwds) != 1 || driver.passwds[0] != want {
		t.Errorf("Unexpected driver calls %+v", driver.passwds)
	}
}

func TestChangePasswordRequiresOperator(t *testing.T) {
	driver := &fakeDriver{}
	svc := NewService(&config.Config{}, driver, nil, hclog.NewNullLogger())

	var cerr *config.Error
	if err := svc.ChangePassword(context.Background(), "203.0.113.7", "bob", "x"); !errors.As(err, &cerr) {
		t.Fatalf("Expected config error, got %v", err)
	}
	if len(driver.passwds) != 0 {
		t.Errorf("Driver must not be called without operator credentials")
	}
}

func TestAuditFailureDoesNotFailOperation(t *testing.T) {
	driver := &fakeDriver{}
	audit := &fakeAuditor{err: errors.New("disk full")}
	svc := newTestService(driver, audit)

	if err := svc.Verify(context.Background(), "203.0.113.7", "alice", "ABC123"); err != nil {
		t.Errorf("Audit errors must not surface, got %v", err)
	}
}

func TestVerifyWithLineBreakInNickWritesOneEntry(t *testing.T) {
	dataDir := t.TempDir()
	audit, err := storage.OpenAudit(dataDir)
	if err != nil {
		t.Fatal(err)
	}
	driver := &fakeDriver{err: &irc.ProtocolError{Kind: irc.VerificationError, Message: "bad"}}
	svc := newTestService(driver, audit)

	nick := "eve\nMon Jan 01, 2024 at 00:00:00 GMT: passwd root -> success"
	if err := svc.Verify(context.Background(), "203.0.113.7", nick, "x"); err == nil {
		t.Fatal("Expected the driver error")
	}

	entries, err := storage.LoadAudit(dataDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("Expected one entry for one call, got %d: %q", len(entries), entries)
	}
	if strings.HasPrefix(entries[0], "Mon Jan 01, 2024") {
		t.Errorf("Entry must not start with a caller-supplied timestamp: %q", entries[0])
	}
}
