package job

import (
	"fmt"
	"math/rand"

	"github.com/leanovate/gopter"
)

// GenJob builds a random Job with the given id, for use by the property
// tests in package master. Grounded on sched/generators.go's
// GenRandomJob/GenRandomTask helpers.
func GenJob(id int64, rng *rand.Rand) *Job {
	numExec := 1 + rng.Intn(8)
	return &Job{
		Id:       id,
		GroupId:  id,
		Priority: rng.Intn(4),
		Script:   []byte(fmt.Sprintf("print(%d)", id)),
		Language: "python",
		Limits: Limits{
			NumExec:        numExec,
			MaxFailedNodes: 1 + rng.Intn(3),
			MaxCPUPerHost:  -1,
		},
	}
}

// GopterGenJob wraps GenJob for use as a gopter.Gen.
func GopterGenJob() gopter.Gen {
	return func(params *gopter.GenParameters) *gopter.GenResult {
		id := params.Rng.Int63()
		j := GenJob(id, params.Rng)
		return gopter.NewGenResult(j, gopter.NoShrinker)
	}
}
