package master

import (
	"sort"

	"github.com/scootdev/dispatch/workerpool"
)

// NodeState is the scheduler's own view of a worker: the registry's
// Worker plus the authoritative busyCPU counter the placement
// algorithm reads and mutates under workersMutex. Grounded on
// sched/scheduler/cluster_state.go's nodeState, simplified to the one
// counter the spec's placement algorithm needs instead of scoot's
// suspended/lost/flaky state machine.
type NodeState struct {
	Worker  *workerpool.Worker
	busyCPU int
}

func newNodeState(w *workerpool.Worker) *NodeState {
	return &NodeState{Worker: w}
}

// FreeCPU is the capacity left for new placements on this worker.
func (n *NodeState) FreeCPU() int {
	free := n.Worker.TotalCPU - n.busyCPU
	if free < 0 {
		return 0
	}
	return free
}

// Available reports whether the worker is currently eligible for new work.
func (n *NodeState) Available() bool {
	return n.Worker.State() == workerpool.Available
}

// sortNodesByCPUAndMemory orders nodes by descending free CPU, ties
// broken by descending memory, per CompareByCPUandMemory.
func sortNodesByCPUAndMemory(nodes []*NodeState) {
	sort.SliceStable(nodes, func(i, k int) bool {
		a, b := nodes[i], nodes[k]
		if a.FreeCPU() != b.FreeCPU() {
			return a.FreeCPU() > b.FreeCPU()
		}
		return a.Worker.MemoryMB > b.Worker.MemoryMB
	})
}
