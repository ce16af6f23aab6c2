package workflow

import (
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/agentkernel/core/internal/budget"
	"github.com/agentkernel/core/internal/evidence"
)

// ConcurrencyLimiter caps how many parallel-stage tasks may run at once
// (the C6-derived limit).
type ConcurrencyLimiter func() int

// Workflow is a named graph of Stages.
type Workflow struct {
	Name   string
	Stages []*Stage
}

// Engine executes Workflows, gating stages on their dependencies and
// recording evidence for relocation/documentation-shaped actions.
type Engine struct {
	ledger      *evidence.Ledger
	concurrency ConcurrencyLimiter
	guard       *budget.Guardian
}

// NewEngine constructs an Engine. concurrency may be nil, in which case
// parallel stages run every task at once. guard may be nil, in which case
// stages run without budget gating (e.g. in tests that exercise stage
// dispatch in isolation).
func NewEngine(ledger *evidence.Ledger, concurrency ConcurrencyLimiter, guard *budget.Guardian) *Engine {
	return &Engine{ledger: ledger, concurrency: concurrency, guard: guard}
}

// Run executes every stage in a Workflow honoring dependency gating: a
// stage whose dependency Failed or was Skipped is Skipped, and stages
// independent of a failure still run. It returns the first stage error
// (a failing non-allow_failure task or a budget escalation).
func (e *Engine) Run(wf *Workflow, baseCtx map[string]interface{}) error {
	byName := make(map[string]*Stage, len(wf.Stages))
	for _, s := range wf.Stages {
		byName[s.Name] = s
		s.Status = StageStatusPending
	}

	var firstErr error
	for _, stage := range wf.Stages {
		if stage.Status != StageStatusPending {
			continue
		}
		if err := e.runStage(stage, byName, baseCtx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (e *Engine) runStage(stage *Stage, byName map[string]*Stage, baseCtx map[string]interface{}) error {
	for _, depName := range stage.DependsOn {
		dep, ok := byName[depName]
		if !ok {
			continue
		}
		if dep.Status == StageStatusPending {
			if err := e.runStage(dep, byName, baseCtx); err != nil {
				stage.Status = StageStatusSkipped
				return err
			}
		}
		if dep.Status == StageStatusFailed || dep.Status == StageStatusSkipped {
			stage.Status = StageStatusSkipped
			return nil
		}
	}

	now := time.Now()
	stage.StartedAt = &now
	stage.Status = StageStatusRunning

	if e.guard != nil {
		if err := e.applyBudgetDecision(stage); err != nil {
			end := time.Now()
			stage.EndedAt = &end
			stage.Status = StageStatusFailed
			stage.Err = err
			return err
		}
	}

	stageCtx := mergeContext(baseCtx, stage.Name)

	var err error
	switch stage.Kind {
	case KindConditional:
		err = e.runConditional(stage, stageCtx)
	case KindParallel:
		err = e.runParallel(stage, stageCtx)
	case KindLoop:
		err = e.runLoop(stage, stageCtx)
	default:
		err = e.runSequential(stage, stageCtx)
	}

	end := time.Now()
	stage.EndedAt = &end
	if stage.Status == StageStatusRunning {
		if err != nil {
			stage.Status = StageStatusFailed
			stage.Err = err
		} else {
			stage.Status = StageStatusCompleted
		}
	}
	return err
}

// applyBudgetDecision runs the stage's task plan past the Budget Guardian
// (C11, §4.9) before dispatch. ActionEscalate fails the stage outright.
// ActionRewritePlan drops the tasks the Guardian flagged as budget-sensitive
// and lets dispatch continue with the trimmed plan.
func (e *Engine) applyBudgetDecision(stage *Stage) error {
	plan := make([]budget.StageTask, len(stage.Tasks))
	for i, t := range stage.Tasks {
		plan[i] = budget.StageTask{Name: t.Name, BudgetSensitive: t.BudgetSensitive}
	}

	decision := e.guard.Evaluate(stage.Name, plan)
	switch decision.Action {
	case budget.ActionEscalate:
		return fmt.Errorf("stage %s: budget guardian escalated: usage tokens=%d avg_latency_ms=%.1f",
			stage.Name, decision.Usage.Tokens, decision.Usage.AverageLatencyMs)
	case budget.ActionRewritePlan:
		keep := make(map[string]bool, len(decision.RewrittenPlan))
		for _, t := range decision.RewrittenPlan {
			keep[t.Name] = true
		}
		rewritten := make([]StageTask, 0, len(decision.RewrittenPlan))
		for _, t := range stage.Tasks {
			if keep[t.Name] {
				rewritten = append(rewritten, t)
			}
		}
		log.Printf("[WORKFLOW] stage %s: budget guardian rewrote plan, dropped %d task(s)",
			stage.Name, len(stage.Tasks)-len(rewritten))
		stage.Tasks = rewritten
	}
	return nil
}

func (e *Engine) runSequential(stage *Stage, ctx map[string]interface{}) error {
	for _, task := range stage.Tasks {
		if err := e.runTask(task, ctx); err != nil && !task.AllowFailure {
			return fmt.Errorf("stage %s: task %s: %w", stage.Name, task.Name, err)
		}
	}
	return nil
}

func (e *Engine) runParallel(stage *Stage, ctx map[string]interface{}) error {
	limit := len(stage.Tasks)
	if e.concurrency != nil {
		if l := e.concurrency(); l > 0 && l < limit {
			limit = l
		}
	}
	if limit <= 0 {
		limit = 1
	}

	sem := make(chan struct{}, limit)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error

	for _, task := range stage.Tasks {
		task := task
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			if err := e.runTask(task, ctx); err != nil && !task.AllowFailure {
				mu.Lock()
				if firstErr == nil {
					firstErr = fmt.Errorf("stage %s: task %s: %w", stage.Name, task.Name, err)
				}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	return firstErr
}

func (e *Engine) runConditional(stage *Stage, ctx map[string]interface{}) error {
	ok, err := EvaluatePredicate(stage.Predicate, ctx)
	if err != nil {
		return err
	}
	if !ok {
		stage.Status = StageStatusSkipped
		return nil
	}
	return e.runSequential(stage, ctx)
}

func (e *Engine) runLoop(stage *Stage, ctx map[string]interface{}) error {
	cap := stage.effectiveIterationCap()
	for i := 0; i < cap; i++ {
		ok, err := EvaluatePredicate(stage.Predicate, ctx)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if err := e.runSequential(stage, ctx); err != nil {
			return err
		}
	}
	log.Printf("[WORKFLOW] stage %s hit loop iteration cap (%d); forcing exit", stage.Name, cap)
	return nil
}

// runTask executes one task's Run function and records evidence when the
// action name matches a relocation/documentation shape (§4.8).
func (e *Engine) runTask(task StageTask, ctx map[string]interface{}) error {
	var err error
	if task.Run != nil {
		err = task.Run(ctx)
	}

	if e.ledger != nil && triggersEvidence(task.ActionName) {
		kind := evidence.KindDocUpdate
		if strings.Contains(strings.ToLower(task.ActionName), "relocat") {
			kind = evidence.KindRelocation
		}
		payload := map[string]interface{}{"action": task.ActionName}
		for k, v := range task.Parameters {
			payload[k] = v
		}
		if _, _, evErr := e.ledger.Append(kind, "workflow-engine", task.Name, payload); evErr != nil {
			log.Printf("[WORKFLOW] failed to record evidence for task %s: %v", task.Name, evErr)
		}
	}
	return err
}

func triggersEvidence(actionName string) bool {
	lower := strings.ToLower(actionName)
	for _, marker := range []string{"relocat", "doc", "handbook", "update"} {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

func mergeContext(base map[string]interface{}, stageName string) map[string]interface{} {
	ctx := make(map[string]interface{}, len(base)+1)
	for k, v := range base {
		ctx[k] = v
	}
	ctx["stage"] = stageName
	return ctx
}
