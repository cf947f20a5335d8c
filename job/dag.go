package job

import "github.com/pkg/errors"

// JobGroup is a directed acyclic graph over Jobs, used to express
// inter-job precedence constraints: "a b c" means a must complete
// successfully before b starts, and b before c.
//
// Grounded on original_source/src/master/job_manager.cpp's
// TopologicalSort/cycle_detector: adjacency lists plus an explicit
// in-degree counter are all a DAG of this shape needs, so (per the
// spec's design notes) no general graph library is pulled in.
type JobGroup struct {
	edges      map[int][]int // vertex -> successor vertices
	indexToJob map[int]*Job
}

// ChainSet is a sequence of chains, each naming jobs in dependency order.
// A chain ["a", "b", "c"] means a -> b -> c.
type ChainSet [][]string

// BuildJobGroup constructs the DAG for a set of named chains over the
// given jobs. It rejects the input if the resulting graph has a cycle.
// On success every job named in chains has had its vertex and dependency
// count assigned (entries of jobsByName that no chain names are left
// untouched), and the returned slice lists every involved job in
// topological order (ready to hand to a job queue via PushAll).
func BuildJobGroup(chains ChainSet, jobsByName map[string]*Job) (*JobGroup, []*Job, error) {
	order, index := indexNames(chains)

	g := &JobGroup{
		edges:      make(map[int][]int, len(order)),
		indexToJob: make(map[int]*Job, len(order)),
	}

	for _, chain := range chains {
		if len(chain) == 0 {
			continue
		}
		v1, ok := index[chain[0]]
		if !ok {
			return nil, nil, errors.Errorf("job %q not indexed", chain[0])
		}
		for _, name := range chain[1:] {
			v2, ok := index[name]
			if !ok {
				return nil, nil, errors.Errorf("job %q not indexed", name)
			}
			g.edges[v1] = append(g.edges[v1], v2)
			v1 = v2
		}
	}

	if hasCycle(order, g.edges) {
		return nil, nil, errors.New("job group has a cycle")
	}

	inDegree := make(map[int]int, len(order))
	for _, v := range order {
		inDegree[v] = 0
	}
	for _, succs := range g.edges {
		for _, s := range succs {
			inDegree[s]++
		}
	}

	sorted := topoSort(order, g.edges)

	jobs := make([]*Job, 0, len(sorted))
	for _, v := range sorted {
		name := nameOf(order, index, v)
		j, ok := jobsByName[name]
		if !ok {
			return nil, nil, errors.Errorf("no job supplied for %q", name)
		}
		j.group = g
		j.vertex = v
		j.setNumDepends(inDegree[v])
		g.indexToJob[v] = j
		jobs = append(jobs, j)
	}

	return g, jobs, nil
}

// Release decrements the dependency count of every direct successor of
// job. It returns the successors that just became eligible for
// scheduling (dependency count reached zero). Callers only need this
// return value for logging/tests: the successors' own Job.numDepends
// field is what gates a job queue's Pop.
func (g *JobGroup) Release(j *Job) []*Job {
	if g == nil || j.group != g {
		return nil
	}
	var freed []*Job
	for _, succV := range g.edges[j.vertex] {
		succ := g.indexToJob[succV]
		if succ == nil {
			continue
		}
		if succ.decrementDepends() == 0 {
			freed = append(freed, succ)
		}
	}
	return freed
}

func indexNames(chains ChainSet) ([]int, map[string]int) {
	index := make(map[string]int)
	var order []int
	next := 0
	for _, chain := range chains {
		for _, name := range chain {
			if _, ok := index[name]; !ok {
				index[name] = next
				order = append(order, next)
				next++
			}
		}
	}
	return order, index
}

func nameOf(order []int, index map[string]int, v int) string {
	for name, idx := range index {
		if idx == v {
			return name
		}
	}
	_ = order
	return ""
}

// hasCycle runs a DFS with the classic white/gray/black coloring; a back
// edge into a gray (in-progress) vertex means a cycle.
func hasCycle(vertices []int, edges map[int][]int) bool {
	const (
		white = iota
		gray
		black
	)
	color := make(map[int]int, len(vertices))
	for _, v := range vertices {
		color[v] = white
	}

	var visit func(v int) bool
	visit = func(v int) bool {
		color[v] = gray
		for _, succ := range edges[v] {
			switch color[succ] {
			case gray:
				return true
			case white:
				if visit(succ) {
					return true
				}
			}
		}
		color[v] = black
		return false
	}

	for _, v := range vertices {
		if color[v] == white {
			if visit(v) {
				return true
			}
		}
	}
	return false
}

// topoSort returns vertices in an order where every vertex appears after
// all of its predecessors (Kahn's algorithm).
func topoSort(vertices []int, edges map[int][]int) []int {
	inDegree := make(map[int]int, len(vertices))
	for _, v := range vertices {
		inDegree[v] = 0
	}
	for _, succs := range edges {
		for _, s := range succs {
			inDegree[s]++
		}
	}

	var queue []int
	for _, v := range vertices {
		if inDegree[v] == 0 {
			queue = append(queue, v)
		}
	}

	var sorted []int
	for len(queue) > 0 {
		v := queue[0]
		queue = queue[1:]
		sorted = append(sorted, v)
		for _, succ := range edges[v] {
			inDegree[succ]--
			if inDegree[succ] == 0 {
				queue = append(queue, succ)
			}
		}
	}
	return sorted
}
