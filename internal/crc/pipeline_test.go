package crc

import "testing"

func readyValidation() ValidationResult {
	return ValidationResult{
		TestsPassed:   true,
		Coverage:      85.0,
		SecurityScan:  true,
		PerformanceOK: true,
		CodeReview:    true,
		Documentation: true,
	}
}

func TestIngestAssignsQueuedState(t *testing.T) {
	p := NewPipeline(0.8)
	d := p.Ingest(DropManifest{Name: "widget", SourceType: SourceExternalRepo})
	if d.State != StateQueued {
		t.Fatalf("expected Queued after ingest, got %s", d.State)
	}
	if d.Manifest.Priority != PriorityHigh {
		t.Fatalf("expected ExternalRepo default priority High, got %s", d.Manifest.Priority)
	}
}

func TestFullHappyPathReachesInSandbox(t *testing.T) {
	p := NewPipeline(0.8)
	d := p.Ingest(DropManifest{Name: "widget", SourceType: SourceFork})

	if err := p.Analyze(d.ID, AnalysisResult{FilesCount: 3, AIConfidence: 0.9}); err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if err := p.Adapt(d.ID, AdaptationResult{ChangesMade: true, AIConfidence: 0.9}); err != nil {
		t.Fatalf("adapt: %v", err)
	}
	if err := p.Validate(d.ID, readyValidation()); err != nil {
		t.Fatalf("validate: %v", err)
	}

	got, _ := p.Get(d.ID)
	if got.State != StateInSandbox {
		t.Fatalf("expected InSandbox, got %s", got.State)
	}
	if got.Sandbox != SandboxB {
		t.Fatalf("expected Fork -> Sandbox B, got %s", got.Sandbox)
	}
	if !got.Adaptation.AutoApproved {
		t.Fatal("expected auto-approval at confidence 0.9 >= threshold 0.8")
	}
}

func TestSandboxOverrideWinsOverDefault(t *testing.T) {
	p := NewPipeline(0.8)
	d := p.Ingest(DropManifest{Name: "widget", SourceType: SourceStale, SandboxOverride: SandboxB})
	p.Analyze(d.ID, AnalysisResult{})
	p.Adapt(d.ID, AdaptationResult{})
	p.Validate(d.ID, readyValidation())

	got, _ := p.Get(d.ID)
	if got.Sandbox != SandboxB {
		t.Fatalf("expected override sandbox B, got %s", got.Sandbox)
	}
}

func TestMergeToIntegrationRequiresAllSourcesReady(t *testing.T) {
	p := NewPipeline(0.8)
	d := p.Ingest(DropManifest{Name: "widget", SourceType: SourceFork})

	if _, err := p.MergeToIntegration([]string{d.ID}, nil); err == nil {
		t.Fatal("expected merge to fail before readiness")
	}

	p.Analyze(d.ID, AnalysisResult{})
	p.Adapt(d.ID, AdaptationResult{})
	p.Validate(d.ID, readyValidation())
	if err := p.MarkReadyToMerge(d.ID); err != nil {
		t.Fatalf("mark ready to merge: %v", err)
	}

	integration, err := p.MergeToIntegration([]string{d.ID}, nil)
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if integration.State != StateMerging || integration.Sandbox != SandboxD {
		t.Fatalf("expected new integration drop in Merging/D, got %+v", integration)
	}

	source, _ := p.Get(d.ID)
	if source.State != StateMerged {
		t.Fatalf("expected source drop Merged, got %s", source.State)
	}

	if err := p.PromoteToProduction(integration.ID, readyValidation()); err != nil {
		t.Fatalf("promote: %v", err)
	}
	got, _ := p.Get(integration.ID)
	if got.State != StateReady {
		t.Fatalf("expected integration Ready, got %s", got.State)
	}
}

func TestMergeBlockedByConflictChecker(t *testing.T) {
	p := NewPipeline(0.8)
	d := p.Ingest(DropManifest{Name: "widget", SourceType: SourceFork})
	p.Analyze(d.ID, AnalysisResult{})
	p.Adapt(d.ID, AdaptationResult{})
	p.Validate(d.ID, readyValidation())
	p.MarkReadyToMerge(d.ID)

	_, err := p.MergeToIntegration([]string{d.ID}, func(sources []*Drop) bool { return true })
	if err == nil {
		t.Fatal("expected conflict checker to block merge")
	}
	source, _ := p.Get(d.ID)
	if source.State != StateReadyToMerge {
		t.Fatalf("expected source state untouched on conflict, got %s", source.State)
	}
}

func TestFailTransitionsFromAnyNonArchivedState(t *testing.T) {
	p := NewPipeline(0.8)
	d := p.Ingest(DropManifest{Name: "widget", SourceType: SourceMirror})
	if err := p.Fail(d.ID, "bad input"); err != nil {
		t.Fatalf("fail: %v", err)
	}
	got, _ := p.Get(d.ID)
	if got.State != StateFailed || got.FailureReason != "bad input" {
		t.Fatalf("expected Failed with reason, got %+v", got)
	}
}

func TestRetentionExpiryArchivesOldDrops(t *testing.T) {
	p := NewPipeline(0.8)
	d := p.Ingest(DropManifest{Name: "widget", SourceType: SourceMirror}) // 30 day retention
	p.Analyze(d.ID, AnalysisResult{})
	p.Adapt(d.ID, AdaptationResult{})
	p.Validate(d.ID, readyValidation())
	p.MarkReadyToMerge(d.ID)
	integration, _ := p.MergeToIntegration([]string{d.ID}, nil)
	p.PromoteToProduction(integration.ID, readyValidation())
	promoted, _ := p.Get(integration.ID)

	future := promoted.UpdatedAt.AddDate(1, 0, 0)
	archived := p.ExpireRetention(future)

	found := false
	for _, id := range archived {
		if id == integration.ID {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected integration drop archived, got %v", archived)
	}
}

func TestRetryRequeuesFailedDrop(t *testing.T) {
	p := NewPipeline(0.8)
	d := p.Ingest(DropManifest{Name: "widget", SourceType: SourceMirror})
	if err := p.Fail(d.ID, "boom"); err != nil {
		t.Fatalf("fail: %v", err)
	}
	if err := p.Retry(d.ID); err != nil {
		t.Fatalf("retry: %v", err)
	}
	got, _ := p.Get(d.ID)
	if got.State != StateQueued {
		t.Fatalf("expected Queued after retry, got %s", got.State)
	}
	if got.FailureReason != "" {
		t.Fatalf("expected failure reason cleared, got %q", got.FailureReason)
	}
}

func TestRetryRejectsNonFailedDrop(t *testing.T) {
	p := NewPipeline(0.8)
	d := p.Ingest(DropManifest{Name: "widget", SourceType: SourceMirror})
	if err := p.Retry(d.ID); err == nil {
		t.Fatal("expected retry to fail on a non-Failed drop")
	}
}

func TestCancelFailsDropWithReason(t *testing.T) {
	p := NewPipeline(0.8)
	d := p.Ingest(DropManifest{Name: "widget", SourceType: SourceMirror})
	if err := p.Cancel(d.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	got, _ := p.Get(d.ID)
	if got.State != StateFailed || got.FailureReason == "" {
		t.Fatalf("expected Failed with a reason, got %+v", got)
	}
}

func TestIsTemporaryFileClassification(t *testing.T) {
	cases := map[string]bool{
		".hidden":        true,
		"upload.tmp":     true,
		"upload.partial": true,
		"upload.download": true,
		"Thumbs.db":      true,
		"real-file.go":   false,
	}
	for name, want := range cases {
		if got := isTemporaryFile(name); got != want {
			t.Errorf("isTemporaryFile(%q) = %v, want %v", name, got, want)
		}
	}
}
