// Package validate checks graph-level soundness of a parsed workflow
// before anything is emitted: every call resolves to a task, every data
// reference resolves to a visible producer, required inputs are bound,
// the call graph is acyclic, and called tasks have commands.
package validate

import (
	"fmt"
	"log/slog"

	"github.com/me/gowl/internal/graph"
	"github.com/me/gowl/pkg/ir"
)

// Validator performs semantic validation on an IR workflow.
type Validator struct {
	logger *slog.Logger
}

// NewValidator creates a Validator with the given logger.
func NewValidator(logger *slog.Logger) *Validator {
	return &Validator{logger: logger.With("component", "validator")}
}

// Validate runs the checks in a fixed order and stops at the first kind
// that fails, reporting every failure of that kind. Later checks assume
// the earlier ones passed: cycle detection is meaningless while call
// references are dangling. A workflow with no calls is valid.
func (v *Validator) Validate(wf *ir.Workflow) error {
	checks := []func(*ir.Workflow) ir.ValidationErrors{
		v.checkTasks,
		v.checkSources,
		v.checkBindings,
		v.checkCycles,
		v.checkCommands,
	}
	for _, check := range checks {
		if errs := check(wf); len(errs) > 0 {
			v.logger.Debug("validation failed",
				"workflow", wf.Name, "kind", errs.Kind(), "count", len(errs))
			return errs
		}
	}
	return nil
}

// checkTasks verifies every call names a task defined in the document.
// Tasks behind an import namespace are not resolvable here: imports are
// carried, not loaded.
func (v *Validator) checkTasks(wf *ir.Workflow) ir.ValidationErrors {
	var errs ir.ValidationErrors
	for _, call := range wf.Calls {
		if _, ok := wf.Task(call.Task); !ok {
			errs = append(errs, &ir.ValidationError{
				Kind:     ir.ValidationUnknownTask,
				Location: "call " + call.Name,
				Message:  fmt.Sprintf("task %q is not defined in this document", call.Task),
			})
		}
	}
	return errs
}

// checkSources resolves every data reference. A MemberRef must name a
// call with that output; a VariableRef must name a workflow input or a
// scatter variable of an enclosing frame. Reference order in the body
// does not matter, the dependency graph is dataflow; loops are the cycle
// check's concern.
func (v *Validator) checkSources(wf *ir.Workflow) ir.ValidationErrors {
	var errs ir.ValidationErrors
	inputs := make(map[string]bool, len(wf.Inputs))
	for _, in := range wf.Inputs {
		inputs[in.Name] = true
	}

	resolveMember := func(ref ir.MemberRef, location string) {
		producer, ok := wf.Call(ref.Call)
		if !ok {
			errs = append(errs, &ir.ValidationError{
				Kind:     ir.ValidationUnknownSource,
				Location: location,
				Message:  fmt.Sprintf("%s.%s does not reference any call", ref.Call, ref.Output),
			})
			return
		}
		if task, ok := wf.Task(producer.Task); ok {
			if _, ok := task.Output(ref.Output); !ok {
				errs = append(errs, &ir.ValidationError{
					Kind:     ir.ValidationUnknownSource,
					Location: location,
					Message:  fmt.Sprintf("call %q has no output %q", ref.Call, ref.Output),
				})
			}
		}
	}

	// check walks one expression with the scatter variables in scope.
	check := func(e ir.Expr, location string, scope map[string]bool) {
		ir.Walk(e, func(sub ir.Expr) {
			switch ref := sub.(type) {
			case ir.MemberRef:
				resolveMember(ref, location)
			case ir.VariableRef:
				if !inputs[ref.Name] && !scope[ref.Name] {
					errs = append(errs, &ir.ValidationError{
						Kind:     ir.ValidationUnknownSource,
						Location: location,
						Message:  fmt.Sprintf("%q does not reference a workflow input or scatter variable", ref.Name),
					})
				}
			}
		})
	}

	for _, call := range wf.Calls {
		// Frame expressions see only the scatter variables of frames
		// outside their own.
		scope := map[string]bool{}
		for _, f := range call.Frames {
			check(f.Expr, "call "+call.Name, scope)
			if f.Kind == ir.FrameScatter {
				scope[f.Var] = true
			}
		}
		for _, name := range call.InputOrder() {
			check(call.Inputs[name], fmt.Sprintf("call %s input %s", call.Name, name), scope)
		}
	}

	for _, out := range wf.Outputs {
		// Outputs evaluate after the body; every call is visible, scatter
		// variables are not.
		check(out.Value, "workflow output "+out.Name, nil)
	}
	return errs
}

// checkBindings verifies each call binds every required input of its
// task. Inputs that are optional or carry defaults may stay unbound.
func (v *Validator) checkBindings(wf *ir.Workflow) ir.ValidationErrors {
	var errs ir.ValidationErrors
	for _, call := range wf.Calls {
		task, ok := wf.Task(call.Task)
		if !ok {
			continue
		}
		for _, in := range task.Inputs {
			if !in.Required() {
				continue
			}
			if _, bound := call.Inputs[in.Name]; !bound {
				errs = append(errs, &ir.ValidationError{
					Kind:     ir.ValidationUnboundInput,
					Location: "call " + call.Name,
					Message:  fmt.Sprintf("required input %q of task %q is not bound", in.Name, task.Name),
				})
			}
		}
	}
	return errs
}

// checkCycles runs Kahn's algorithm over the call graph.
func (v *Validator) checkCycles(wf *ir.Workflow) ir.ValidationErrors {
	_, cycle := graph.Build(wf).ExecutionOrder()
	if cycle == nil {
		return nil
	}
	return ir.ValidationErrors{{
		Kind:    ir.ValidationCycle,
		Message: fmt.Sprintf("workflow contains a dependency cycle involving %d calls", len(cycle)),
		Calls:   cycle,
	}}
}

// checkCommands verifies every called task has a non-empty command.
// Uncalled task definitions may be bodies in progress and pass.
func (v *Validator) checkCommands(wf *ir.Workflow) ir.ValidationErrors {
	var errs ir.ValidationErrors
	seen := map[string]bool{}
	for _, call := range wf.Calls {
		if seen[call.Task] {
			continue
		}
		seen[call.Task] = true
		task, ok := wf.Task(call.Task)
		if !ok {
			continue
		}
		if !task.HasCommand() {
			errs = append(errs, &ir.ValidationError{
				Kind:     ir.ValidationMissingCommand,
				Location: "task " + task.Name,
				Message:  fmt.Sprintf("task %q is called but has no command", task.Name),
			})
		}
	}
	return errs
}
