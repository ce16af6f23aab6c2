// Package evidence implements the Pipeline Instrumentation / Evidence
// Ledger (C13): an append-only, signed audit trail. Writes must be durable
// before the caller is acknowledged; a failing signer is treated as fatal
// to the current action rather than silently skipped.
package evidence

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/agentkernel/core/internal/types"
)

// Kind identifies the category of an evidence Record.
type Kind string

const (
	KindRelocation     Kind = "relocation"
	KindDocUpdate      Kind = "doc_update"
	KindAutoFix        Kind = "auto_fix"
	KindBudgetDecision Kind = "budget_decision"
)

// Record is one append-only, signed evidence entry.
type Record struct {
	ID        int64                  `json:"id"`
	Kind      Kind                   `json:"kind"`
	Actor     string                 `json:"actor"`
	Subject   string                 `json:"subject"`
	Payload   map[string]interface{} `json:"payload"`
	Timestamp time.Time              `json:"timestamp"`
	Signature string                 `json:"signature"`
}

// Ledger is the process-wide append-only evidence store. Records are
// flushed to an underlying writer (a file in production, an in-memory
// buffer in tests) before Append returns.
type Ledger struct {
	mu      sync.Mutex
	signer  *Signer
	file    *os.File
	writer  *bufio.Writer
	nextID  int64
	records []Record // in-memory mirror for snapshot retrieval
}

// Open creates or appends to a line-delimited JSON evidence file signed by
// signer.
func Open(path string, signer *Signer) (*Ledger, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, types.NewError(types.KindExternal, "evidence.Open", err)
	}
	l := &Ledger{signer: signer, file: f, writer: bufio.NewWriter(f)}
	if err := l.replay(); err != nil {
		f.Close()
		return nil, err
	}
	return l, nil
}

// OpenInMemory constructs a Ledger that never touches disk, for tests and
// ephemeral environments.
func OpenInMemory(signer *Signer) *Ledger {
	return &Ledger{signer: signer}
}

func (l *Ledger) replay() error {
	stat, err := l.file.Stat()
	if err != nil {
		return types.NewError(types.KindExternal, "evidence.replay", err)
	}
	if stat.Size() == 0 {
		return nil
	}
	if _, err := l.file.Seek(0, 0); err != nil {
		return types.NewError(types.KindExternal, "evidence.replay", err)
	}
	scanner := bufio.NewScanner(l.file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var r Record
		if err := json.Unmarshal(scanner.Bytes(), &r); err != nil {
			return types.NewError(types.KindIntegrity, "evidence.replay", err)
		}
		l.records = append(l.records, r)
		if r.ID >= l.nextID {
			l.nextID = r.ID + 1
		}
	}
	if _, err := l.file.Seek(0, 2); err != nil {
		return types.NewError(types.KindExternal, "evidence.replay", err)
	}
	return nil
}

// Append signs and durably persists a new Record, returning a snapshot
// path reviewers can use to retrieve the full context (the ledger's
// backing file path, or an in-memory marker).
func (l *Ledger) Append(kind Kind, actor, subject string, payload map[string]interface{}) (Record, string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec := Record{
		ID:        l.nextID,
		Kind:      kind,
		Actor:     actor,
		Subject:   subject,
		Payload:   payload,
		Timestamp: time.Now(),
	}

	sig, err := l.signer.Sign(rec)
	if err != nil {
		return Record{}, "", types.NewError(types.KindDependency, "evidence.Append", fmt.Errorf("signing evidence record: %w", err))
	}
	rec.Signature = sig

	if l.writer != nil {
		line, err := json.Marshal(rec)
		if err != nil {
			return Record{}, "", types.NewError(types.KindIntegrity, "evidence.Append", err)
		}
		if _, err := l.writer.Write(append(line, '\n')); err != nil {
			return Record{}, "", types.NewError(types.KindExternal, "evidence.Append", fmt.Errorf("writing evidence record: %w", err))
		}
		if err := l.writer.Flush(); err != nil {
			return Record{}, "", types.NewError(types.KindExternal, "evidence.Append", fmt.Errorf("flushing evidence record: %w", err))
		}
		if err := l.file.Sync(); err != nil {
			return Record{}, "", types.NewError(types.KindExternal, "evidence.Append", fmt.Errorf("syncing evidence record: %w", err))
		}
	}

	l.nextID++
	l.records = append(l.records, rec)

	snapshotPath := "memory://evidence"
	if l.file != nil {
		snapshotPath = l.file.Name()
	}
	return rec, snapshotPath, nil
}

// All returns every record appended so far, in append order.
func (l *Ledger) All() []Record {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Record, len(l.records))
	copy(out, l.records)
	return out
}

// Close flushes and closes the backing file, if any.
func (l *Ledger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.writer != nil {
		if err := l.writer.Flush(); err != nil {
			return err
		}
	}
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}
