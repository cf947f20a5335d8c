package workerpool

import (
	"fmt"
	"math/rand"

	"github.com/leanovate/gopter"
)

// GenWorker builds a random Available Worker, for use by the property
// tests in package master. Grounded on sched/generators.go's style of
// small, directly-constructed random domain objects rather than a
// general-purpose struct fuzzer.
func GenWorker(idx int, rng *rand.Rand) *Worker {
	ip := fmt.Sprintf("10.0.0.%d", idx)
	cpu := 1 + rng.Intn(8)
	mem := 1024 * (1 + rng.Intn(16))
	return NewWorker(ip, fmt.Sprintf("host-%d", idx), fmt.Sprintf("group-%d", idx%3), cpu, mem)
}

// GopterGenWorker wraps GenWorker for use as a gopter.Gen.
func GopterGenWorker() gopter.Gen {
	return func(params *gopter.GenParameters) *gopter.GenResult {
		idx := params.Rng.Intn(1 << 16)
		w := GenWorker(idx, params.Rng)
		return gopter.NewGenResult(w, gopter.NoShrinker)
	}
}
