package pipeline

import (
	"fmt"
	"sort"
)

// Plan computes ordered execution batches for the given stages using
// Kahn's algorithm. Stages inside one batch have no dependencies on
// each other and may run concurrently; batches run strictly in order.
// Ties among ready stages break by declaration order, so planning is
// deterministic.
//
// When targets are given, only the targets and their transitive
// dependencies are planned (manual trigger of a subset).
//
// Cycles and malformed references fail before anything executes.
func Plan(stages []*Stage, targets ...string) ([][]*Stage, error) {
	byID := make(map[string]*Stage, len(stages))
	order := make(map[string]int, len(stages)) // declaration order
	for i, st := range stages {
		if st.ID == "" {
			return nil, &ConfigurationError{Err: fmt.Errorf("stage %d has no id", i)}
		}
		if _, dup := byID[st.ID]; dup {
			return nil, &ConfigurationError{Err: fmt.Errorf("duplicate stage id %q", st.ID)}
		}
		byID[st.ID] = st
		order[st.ID] = i
	}

	for _, st := range stages {
		for _, need := range st.Needs {
			if need == st.ID {
				return nil, &CycleError{Stages: []string{st.ID}}
			}
			if _, ok := byID[need]; !ok {
				return nil, &ConfigurationError{Err: fmt.Errorf("stage %q needs unknown stage %q", st.ID, need)}
			}
		}
	}

	selected := selectStages(stages, byID, targets)

	// Kahn's algorithm over the selected subset.
	indegree := make(map[string]int, len(selected))
	dependents := make(map[string][]string, len(selected))
	inSubset := make(map[string]bool, len(selected))
	for _, st := range selected {
		inSubset[st.ID] = true
	}
	for _, st := range selected {
		for _, need := range st.Needs {
			if !inSubset[need] {
				continue
			}
			indegree[st.ID]++
			dependents[need] = append(dependents[need], st.ID)
		}
	}

	var batches [][]*Stage
	remaining := len(selected)
	ready := make([]*Stage, 0, len(selected))
	for _, st := range selected {
		if indegree[st.ID] == 0 {
			ready = append(ready, st)
		}
	}

	for len(ready) > 0 {
		// One batch is everything currently ready, in declaration order.
		sort.SliceStable(ready, func(i, j int) bool {
			return order[ready[i].ID] < order[ready[j].ID]
		})
		batch := ready
		batches = append(batches, batch)
		remaining -= len(batch)

		var next []*Stage
		seen := make(map[string]bool)
		for _, st := range batch {
			for _, dep := range dependents[st.ID] {
				indegree[dep]--
				if indegree[dep] == 0 && !seen[dep] {
					seen[dep] = true
					next = append(next, byID[dep])
				}
			}
		}
		ready = next
	}

	if remaining > 0 {
		var stuck []string
		for _, st := range selected {
			if indegree[st.ID] > 0 {
				stuck = append(stuck, st.ID)
			}
		}
		sort.Slice(stuck, func(i, j int) bool { return order[stuck[i]] < order[stuck[j]] })
		return nil, &CycleError{Stages: stuck}
	}

	return batches, nil
}

// selectStages returns the planning subset: all stages, or the targets
// plus their transitive dependencies, in declaration order.
func selectStages(stages []*Stage, byID map[string]*Stage, targets []string) []*Stage {
	if len(targets) == 0 {
		return stages
	}

	include := make(map[string]bool)
	var visit func(id string)
	visit = func(id string) {
		if include[id] {
			return
		}
		include[id] = true
		if st, ok := byID[id]; ok {
			for _, need := range st.Needs {
				visit(need)
			}
		}
	}
	for _, t := range targets {
		visit(t)
	}

	var out []*Stage
	for _, st := range stages {
		if include[st.ID] {
			out = append(out, st)
		}
	}
	return out
}

// Validate checks stage definitions without planning: unique ids, known
// needs, declared inputs limited to declared dependencies, sane outputs.
func Validate(stages []*Stage) error {
	byID := make(map[string]*Stage, len(stages))
	for i, st := range stages {
		if st.ID == "" {
			return &ConfigurationError{Err: fmt.Errorf("stage %d has no id", i)}
		}
		if _, dup := byID[st.ID]; dup {
			return &ConfigurationError{Err: fmt.Errorf("duplicate stage id %q", st.ID)}
		}
		byID[st.ID] = st
	}

	for _, st := range stages {
		needs := make(map[string]bool, len(st.Needs))
		for _, need := range st.Needs {
			if _, ok := byID[need]; !ok {
				return &ConfigurationError{Err: fmt.Errorf("stage %q needs unknown stage %q", st.ID, need)}
			}
			needs[need] = true
		}
		for _, in := range st.Inputs {
			if !needs[in.Stage] {
				return &ConfigurationError{Err: fmt.Errorf("stage %q reads %s without declaring a dependency on %q", st.ID, in.Key(), in.Stage)}
			}
		}
		seen := make(map[string]bool, len(st.Outputs))
		for _, out := range st.Outputs {
			if out.Name == "" {
				return &ConfigurationError{Err: fmt.Errorf("stage %q declares an unnamed output", st.ID)}
			}
			if seen[out.Name] {
				return &ConfigurationError{Err: fmt.Errorf("stage %q declares output %q twice", st.ID, out.Name)}
			}
			seen[out.Name] = true
		}
		if st.Action == nil {
			return &ConfigurationError{Err: fmt.Errorf("stage %q has no action", st.ID)}
		}
	}

	_, err := Plan(stages)
	return err
}
