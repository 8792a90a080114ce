package graph

import "github.com/comalice/fsmgen/internal/ir"

// Walks over the frozen Machine shared by the verifier (atomic-cycle
// detection) and the scenario synthesizer (cycle and path scenarios).
// Both enumerations visit states in ID order and transitions in
// declaration order, so their output is byte-stable across runs.

// SimpleCycles enumerates every simple cycle of at most maxLen edges,
// each reported as its edge sequence starting from the cycle's
// lowest-ID vertex. A self-loop is a cycle of length one.
func SimpleCycles(m *ir.Machine, maxLen int) [][]*ir.Transition {
	var cycles [][]*ir.Transition
	if maxLen < 1 {
		return cycles
	}
	for _, start := range m.States {
		var path []*ir.Transition
		onPath := map[*ir.State]bool{start: true}

		var dfs func(v *ir.State)
		dfs = func(v *ir.State) {
			for _, t := range m.Out(v) {
				d := t.Destination
				if d == start {
					cycle := make([]*ir.Transition, len(path)+1)
					copy(cycle, path)
					cycle[len(path)] = t
					cycles = append(cycles, cycle)
					continue
				}
				// Restricting the walk to IDs above the start vertex is
				// what makes the lowest-ID vertex the canonical cycle
				// start: every cycle is found exactly once.
				if d.ID <= start.ID || onPath[d] || len(path)+1 >= maxLen {
					continue
				}
				onPath[d] = true
				path = append(path, t)
				dfs(d)
				path = path[:len(path)-1]
				delete(onPath, d)
			}
		}
		dfs(start)
	}
	return cycles
}

// SimplePaths enumerates every simple path of at most maxLen edges from
// the given vertex to a vertex satisfying isEnd. Self-loops are skipped
// (they can never lie on a simple path).
func SimplePaths(m *ir.Machine, from *ir.State, maxLen int, isEnd func(*ir.State) bool) [][]*ir.Transition {
	var paths [][]*ir.Transition
	if from == nil || maxLen < 1 {
		return paths
	}
	var path []*ir.Transition
	onPath := map[*ir.State]bool{from: true}

	var dfs func(v *ir.State)
	dfs = func(v *ir.State) {
		for _, t := range m.Out(v) {
			d := t.Destination
			if d == v || onPath[d] {
				continue
			}
			path = append(path, t)
			onPath[d] = true
			if isEnd(d) {
				p := make([]*ir.Transition, len(path))
				copy(p, path)
				paths = append(paths, p)
			} else if len(path) < maxLen {
				dfs(d)
			}
			delete(onPath, d)
			path = path[:len(path)-1]
		}
	}
	dfs(from)
	return paths
}

// ShortestPath returns the edge sequence of a shortest path from one
// vertex to another, breadth-first with declaration-order tie breaking,
// or nil if no path exists. Internal transitions never advance a walk
// and are skipped.
func ShortestPath(m *ir.Machine, from, to *ir.State) []*ir.Transition {
	if from == nil || to == nil {
		return nil
	}
	if from == to {
		return []*ir.Transition{}
	}
	prev := map[*ir.State]*ir.Transition{}
	queue := []*ir.State{from}
	seen := map[*ir.State]bool{from: true}
	for len(queue) > 0 {
		v := queue[0]
		queue = queue[1:]
		for _, t := range m.Out(v) {
			d := t.Destination
			if d == v || seen[d] {
				continue
			}
			seen[d] = true
			prev[d] = t
			if d == to {
				var rev []*ir.Transition
				for s := to; s != from; {
					e := prev[s]
					rev = append(rev, e)
					s = e.Source
				}
				path := make([]*ir.Transition, len(rev))
				for i, e := range rev {
					path[len(rev)-1-i] = e
				}
				return path
			}
			queue = append(queue, d)
		}
	}
	return nil
}
