package evidence

import (
	"path/filepath"
	"testing"
)

func TestAppendSignsAndPersistsRecords(t *testing.T) {
	dir := t.TempDir()
	signer := NewSigner([]byte("test-signing-key"))
	l, err := Open(filepath.Join(dir, "ledger.jsonl"), signer)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer l.Close()

	rec, snapshot, err := l.Append(KindDocUpdate, "workflow-engine", "README.md", map[string]interface{}{"path": "README.md"})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if rec.Signature == "" {
		t.Fatal("expected non-empty signature")
	}
	if snapshot == "" {
		t.Fatal("expected non-empty snapshot path")
	}

	ok, err := signer.Verify(rec)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !ok {
		t.Fatal("expected signature to verify")
	}
}

func TestAppendAssignsStrictlyIncreasingIDs(t *testing.T) {
	l := OpenInMemory(NewSigner([]byte("key")))
	first, _, _ := l.Append(KindAutoFix, "a", "s1", nil)
	second, _, _ := l.Append(KindAutoFix, "a", "s2", nil)
	if second.ID != first.ID+1 {
		t.Fatalf("expected strictly increasing ids, got %d then %d", first.ID, second.ID)
	}
}

func TestReplayRecoversNextIDAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ledger.jsonl")
	signer := NewSigner([]byte("key"))

	l1, err := Open(path, signer)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	l1.Append(KindRelocation, "a", "s1", nil)
	l1.Append(KindRelocation, "a", "s2", nil)
	l1.Close()

	l2, err := Open(path, signer)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer l2.Close()
	if len(l2.All()) != 2 {
		t.Fatalf("expected 2 replayed records, got %d", len(l2.All()))
	}
	rec, _, err := l2.Append(KindRelocation, "a", "s3", nil)
	if err != nil {
		t.Fatalf("append after reopen: %v", err)
	}
	if rec.ID != 2 {
		t.Fatalf("expected next id 2 after replay, got %d", rec.ID)
	}
}

func TestTamperedRecordFailsVerification(t *testing.T) {
	signer := NewSigner([]byte("key"))
	l := OpenInMemory(signer)
	rec, _, _ := l.Append(KindBudgetDecision, "budget-guardian", "stage-1", map[string]interface{}{"tokens": 100})

	rec.Subject = "tampered"
	ok, err := signer.Verify(rec)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if ok {
		t.Fatal("expected tampered record to fail verification")
	}
}
