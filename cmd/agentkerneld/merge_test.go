package main

import (
	"testing"

	"github.com/agentkernel/core/internal/crc"
	"github.com/agentkernel/core/internal/sandbox"
)

func readyValidation() crc.ValidationResult {
	return crc.ValidationResult{
		TestsPassed:   true,
		Coverage:      85.0,
		SecurityScan:  true,
		PerformanceOK: true,
		CodeReview:    true,
		Documentation: true,
	}
}

func readyDrop(t *testing.T, p *crc.Pipeline, source crc.SourceType) *crc.Drop {
	t.Helper()
	d := p.Ingest(crc.DropManifest{Name: "widget", SourceType: source})
	if err := p.Analyze(d.ID, crc.AnalysisResult{}); err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if err := p.Adapt(d.ID, crc.AdaptationResult{}); err != nil {
		t.Fatalf("adapt: %v", err)
	}
	if err := p.Validate(d.ID, readyValidation()); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if err := p.MarkReadyToMerge(d.ID); err != nil {
		t.Fatalf("mark ready to merge: %v", err)
	}
	got, _ := p.Get(d.ID)
	return got
}

func TestMergeDropsSucceedsWithDisjointLanes(t *testing.T) {
	p := crc.NewPipeline(0.8)
	k := &kernel{pipeline: p, sandboxes: sandbox.NewManager()}

	d := readyDrop(t, p, crc.SourceFork)

	integration, err := k.MergeDrops([]string{d.ID})
	if err != nil {
		t.Fatalf("merge drops: %v", err)
	}
	if integration.State != crc.StateMerging || integration.Sandbox != crc.SandboxD {
		t.Fatalf("expected integration drop in Merging/D, got %+v", integration)
	}
}

func TestMergeDropsBlockedByOverlappingSandboxFiles(t *testing.T) {
	p := crc.NewPipeline(0.8)
	sb := sandbox.NewManager()
	k := &kernel{pipeline: p, sandboxes: sb}

	a := readyDrop(t, p, crc.SourceFork)
	b := readyDrop(t, p, crc.SourceMirror)

	sb.Occupy(sandbox.Name(a.Sandbox), a.ID, "feature/a", []string{"shared.go"})
	sb.Occupy(sandbox.Name(b.Sandbox), b.ID, "feature/b", []string{"shared.go"})

	if _, err := k.MergeDrops([]string{a.ID, b.ID}); err == nil {
		t.Fatal("expected merge to be blocked by overlapping sandbox files")
	}
}
