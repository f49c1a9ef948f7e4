// Package graph analyzes the call graph of a workflow: topological
// ordering via Kahn's algorithm, cycle detection, and structural
// statistics such as critical path and parallelism width.
package graph

import (
	"sort"

	"github.com/me/gowl/pkg/ir"
)

// DAG is the dependency graph over a workflow's calls.
//
// Deps["annotate"] = ["assemble"] means annotate consumes an output of
// assemble. Bare references to workflow inputs create no edges.
type DAG struct {
	wf *ir.Workflow

	// Deps maps each call to its upstream calls, sorted.
	Deps map[string][]string

	// forward is the reverse adjacency: producer to consumers.
	forward map[string][]string

	index map[string]int // body order, for deterministic tie-breaking
}

// Build constructs the dependency graph from call argument and frame
// expressions. References to call names that do not exist are ignored;
// the validator reports those separately.
func Build(wf *ir.Workflow) *DAG {
	d := &DAG{
		wf:      wf,
		Deps:    make(map[string][]string, len(wf.Calls)),
		forward: make(map[string][]string, len(wf.Calls)),
		index:   wf.CallIndex(),
	}
	for _, call := range wf.Calls {
		for _, dep := range call.Dependencies() {
			if _, ok := d.index[dep]; !ok {
				continue
			}
			d.Deps[call.Name] = append(d.Deps[call.Name], dep)
			d.forward[dep] = append(d.forward[dep], call.Name)
		}
		sort.Strings(d.Deps[call.Name])
	}
	return d
}

// ExecutionOrder returns a topological order of the calls using Kahn's
// algorithm. Ready calls are scheduled in body order, so the result is
// deterministic for a given workflow. On a cycle it returns the sorted
// names of the calls trapped on it.
func (d *DAG) ExecutionOrder() ([]string, []string) {
	inDegree := make(map[string]int, len(d.wf.Calls))
	for _, call := range d.wf.Calls {
		inDegree[call.Name] = len(d.Deps[call.Name])
	}

	var queue []string
	for _, call := range d.wf.Calls {
		if inDegree[call.Name] == 0 {
			queue = append(queue, call.Name)
		}
	}
	d.sortByIndex(queue)

	var order []string
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		order = append(order, node)

		for _, succ := range d.forward[node] {
			inDegree[succ]--
			if inDegree[succ] == 0 {
				queue = append(queue, succ)
			}
		}
		d.sortByIndex(queue)
	}

	if len(order) != len(d.wf.Calls) {
		var cycle []string
		for name, deg := range inDegree {
			if deg > 0 {
				cycle = append(cycle, name)
			}
		}
		sort.Strings(cycle)
		return nil, cycle
	}
	return order, nil
}

// levels assigns each call its depth in the dependency graph: calls with
// no upstream are level 0, every other call sits one past its deepest
// dependency. Only meaningful on acyclic graphs.
func (d *DAG) levels() (map[string]int, bool) {
	order, cycle := d.ExecutionOrder()
	if cycle != nil {
		return nil, false
	}
	levels := make(map[string]int, len(order))
	for _, name := range order {
		level := 0
		for _, dep := range d.Deps[name] {
			if l := levels[dep] + 1; l > level {
				level = l
			}
		}
		levels[name] = level
	}
	return levels, true
}

// CriticalPath returns the longest dependency chain, producer first.
// Ties break toward the call declared earliest in the body. Returns nil
// on a cyclic graph.
func (d *DAG) CriticalPath() []string {
	levels, ok := d.levels()
	if !ok || len(levels) == 0 {
		return nil
	}

	// Deepest call, earliest declaration on ties.
	var tail string
	tailLevel := -1
	for _, call := range d.wf.Calls {
		if l := levels[call.Name]; l > tailLevel {
			tail, tailLevel = call.Name, l
		}
	}

	// Walk upstream through a deepest dependency each step.
	path := []string{tail}
	for levels[path[0]] > 0 {
		cur := path[0]
		next := ""
		for _, dep := range d.Deps[cur] {
			if levels[dep] != levels[cur]-1 {
				continue
			}
			if next == "" || d.index[dep] < d.index[next] {
				next = dep
			}
		}
		if next == "" {
			break
		}
		path = append([]string{next}, path...)
	}
	return path
}

// CriticalPathWeighted returns the dependency chain with the largest
// summed cost, producer first. weights assigns a cost per task name;
// tasks with no entry cost 1. Ties break toward the call declared
// earliest in the body. Returns nil on a cyclic graph.
func (d *DAG) CriticalPathWeighted(weights map[string]float64) []string {
	order, cycle := d.ExecutionOrder()
	if cycle != nil || len(order) == 0 {
		return nil
	}

	cost := make(map[string]float64, len(order))
	prev := make(map[string]string, len(order))
	for _, call := range d.wf.Calls {
		w := 1.0
		if v, ok := weights[call.Task]; ok {
			w = v
		}
		cost[call.Name] = w
	}
	for _, name := range order {
		bestDep := ""
		for _, dep := range d.Deps[name] {
			switch {
			case bestDep == "", cost[dep] > cost[bestDep]:
				bestDep = dep
			case cost[dep] == cost[bestDep] && d.index[dep] < d.index[bestDep]:
				bestDep = dep
			}
		}
		if bestDep != "" {
			cost[name] += cost[bestDep]
			prev[name] = bestDep
		}
	}

	var tail string
	for _, call := range d.wf.Calls {
		if tail == "" || cost[call.Name] > cost[tail] {
			tail = call.Name
		}
	}

	path := []string{tail}
	for {
		dep, ok := prev[path[0]]
		if !ok {
			break
		}
		path = append([]string{dep}, path...)
	}
	return path
}

// ParallelGroups partitions the calls into waves that can run
// concurrently: group N holds every call whose deepest dependency chain
// has length N. Calls within a group keep body order. Returns nil on a
// cyclic graph.
func (d *DAG) ParallelGroups() [][]string {
	levels, ok := d.levels()
	if !ok || len(levels) == 0 {
		return nil
	}
	depth := 0
	for _, l := range levels {
		if l > depth {
			depth = l
		}
	}
	groups := make([][]string, depth+1)
	for _, call := range d.wf.Calls {
		l := levels[call.Name]
		groups[l] = append(groups[l], call.Name)
	}
	return groups
}

// MaxParallelism returns the size of the widest parallel group, or 0 for
// an empty or cyclic graph.
func (d *DAG) MaxParallelism() int {
	max := 0
	for _, g := range d.ParallelGroups() {
		if len(g) > max {
			max = len(g)
		}
	}
	return max
}

func (d *DAG) sortByIndex(names []string) {
	sort.Slice(names, func(i, j int) bool {
		return d.index[names[i]] < d.index[names[j]]
	})
}

// Stats summarizes a workflow's structure for reporting.
type Stats struct {
	Name            string     `json:"name"`
	Tasks           int        `json:"tasks"`
	Calls           int        `json:"calls"`
	Inputs          int        `json:"inputs"`
	Outputs         int        `json:"outputs"`
	CriticalPath    []string   `json:"critical_path"`
	CriticalPathLen int        `json:"critical_path_length"`
	MaxParallelism  int        `json:"max_parallelism"`
	ParallelGroups  [][]string `json:"parallel_groups"`
	HasScatter      bool       `json:"has_scatter"`
	HasConditional  bool       `json:"has_conditional"`
}

// Summarize computes structural statistics. The workflow must already
// have passed validation; cyclic graphs yield empty path fields.
func Summarize(wf *ir.Workflow) Stats {
	d := Build(wf)
	s := Stats{
		Name:           wf.Name,
		Tasks:          len(wf.Tasks),
		Calls:          len(wf.Calls),
		Inputs:         len(wf.Inputs),
		Outputs:        len(wf.Outputs),
		CriticalPath:   d.CriticalPath(),
		ParallelGroups: d.ParallelGroups(),
		MaxParallelism: d.MaxParallelism(),
	}
	s.CriticalPathLen = len(s.CriticalPath)
	for _, call := range wf.Calls {
		for _, f := range call.Frames {
			switch f.Kind {
			case ir.FrameScatter:
				s.HasScatter = true
			case ir.FrameConditional:
				s.HasConditional = true
			}
		}
	}
	return s
}
