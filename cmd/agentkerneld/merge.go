package main

import (
	"github.com/agentkernel/core/internal/crc"
	"github.com/agentkernel/core/internal/sandbox"
)

// MergeDrops promotes a set of ready-to-merge drops into the integration
// sandbox (lane D), using the Sandbox Manager's file-overlap check as the
// Code-Drop Pipeline's ConflictChecker. This is the adapter between the
// two packages: crc never imports sandbox directly, so the wiring lives
// here at the composition root.
func (k *kernel) MergeDrops(dropIDs []string) (*crc.Drop, error) {
	checker := func(sources []*crc.Drop) bool {
		lanes := make([]sandbox.Name, 0, len(sources))
		for _, d := range sources {
			lanes = append(lanes, sandbox.Name(d.Sandbox))
		}
		return k.sandboxes.CheckConflicts(lanes)
	}

	return k.pipeline.MergeToIntegration(dropIDs, checker)
}
