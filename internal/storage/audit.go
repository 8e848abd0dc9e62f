package storage

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const (
	maxEntries = 500
	auditFile  = "audit.txt"
)

var (
	// fieldEscaper keeps caller-supplied text on a single audit line.
	fieldEscaper = strings.NewReplacer(`\`, `\\`, "\r", `\r`, "\n", `\n`)
	// lineEscaper is applied to whole entries when writing the file.
	lineEscaper = strings.NewReplacer("\r", `\r`, "\n", `\n`)
)

// LoadAudit reads the audit trail from file, oldest entry first.
func LoadAudit(dataDir string) ([]string, error) {
	lines, err := readLines(filepath.Join(dataDir, auditFile))
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, err
	}
	return lines, nil
}

// SaveAudit writes the audit trail to file (max 500 entries, newest kept).
func SaveAudit(dataDir string, entries []string) error {
	if len(entries) > maxEntries {
		entries = entries[len(entries)-maxEntries:]
	}
	return writeLines(filepath.Join(dataDir, auditFile), entries)
}

// AddAudit appends a new entry, dropping the oldest past the cap.
func AddAudit(entries []string, entry string) []string {
	entries = append(entries, entry)
	if len(entries) > maxEntries {
		entries = entries[1:]
	}
	return entries
}

// AuditLog keeps the trail in memory and persists it on every Record.
type AuditLog struct {
	dataDir string
	mu      sync.Mutex
	entries []string
	now     func() time.Time
}

// OpenAudit loads the existing trail from dataDir, creating the directory
// if needed.
func OpenAudit(dataDir string) (*AuditLog, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	entries, err := LoadAudit(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load audit log: %w", err)
	}
	return &AuditLog{dataDir: dataDir, entries: entries, now: time.Now}, nil
}

// Record appends "<timestamp>: <operation> <nick> -> <outcome>" and saves.
// Backslashes, CR and LF in the fields are escaped, so every call yields
// exactly one entry.
func (a *AuditLog) Record(operation, nick, outcome string) error {
	timestamp := a.now().UTC().Format("Mon Jan 02, 2006 at 15:04:05 GMT")
	entry := fmt.Sprintf("%s: %s %s -> %s", timestamp,
		fieldEscaper.Replace(operation), fieldEscaper.Replace(nick), fieldEscaper.Replace(outcome))

	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = AddAudit(a.entries, entry)
	return SaveAudit(a.dataDir, a.entries)
}

// Entries returns a copy of the trail, oldest first.
func (a *AuditLog) Entries() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.entries...)
}

func readLines(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := scanner.Text()
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines, scanner.Err()
}

// writeLines stores one entry per line; stray line breaks inside an entry
// are written as \r and \n instead of starting a new entry.
func writeLines(path string, entries []string) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}

	w := bufio.NewWriter(file)
	for _, entry := range entries {
		if _, err := w.WriteString(lineEscaper.Replace(entry) + "\n"); err != nil {
			file.Close()
			return err
		}
	}
	if err := w.Flush(); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}
