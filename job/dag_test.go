package job

import "testing"

func makeNamedJobs(names ...string) map[string]*Job {
	jobs := make(map[string]*Job, len(names))
	for i, n := range names {
		jobs[n] = &Job{Id: int64(i + 1)}
	}
	return jobs
}

func Test_BuildJobGroup_LinearChain(t *testing.T) {
	jobs := makeNamedJobs("a", "b", "c")
	_, sorted, err := BuildJobGroup(ChainSet{{"a", "b", "c"}}, jobs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sorted) != 3 {
		t.Fatalf("expected 3 jobs, got %d", len(sorted))
	}
	if jobs["a"].NumDepends() != 0 {
		t.Errorf("a should have no dependencies, got %d", jobs["a"].NumDepends())
	}
	if jobs["b"].NumDepends() != 1 {
		t.Errorf("b should depend on 1 job, got %d", jobs["b"].NumDepends())
	}
	if jobs["c"].NumDepends() != 1 {
		t.Errorf("c should depend on 1 job, got %d", jobs["c"].NumDepends())
	}
}

func Test_BuildJobGroup_RejectsCycle(t *testing.T) {
	jobs := makeNamedJobs("a", "b")
	_, _, err := BuildJobGroup(ChainSet{{"a", "b"}, {"b", "a"}}, jobs)
	if err == nil {
		t.Fatal("expected a cycle to be rejected")
	}
}

func Test_JobGroup_Release(t *testing.T) {
	jobs := makeNamedJobs("a", "b", "c")
	g, _, err := BuildJobGroup(ChainSet{{"a", "c"}, {"b", "c"}}, jobs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if jobs["c"].NumDepends() != 2 {
		t.Fatalf("c should depend on 2 jobs, got %d", jobs["c"].NumDepends())
	}

	freed := g.Release(jobs["a"])
	if len(freed) != 0 {
		t.Fatalf("c should not be freed after only one predecessor completes, got %v", freed)
	}
	if jobs["c"].NumDepends() != 1 {
		t.Fatalf("expected 1 remaining dependency, got %d", jobs["c"].NumDepends())
	}

	freed = g.Release(jobs["b"])
	if len(freed) != 1 || freed[0] != jobs["c"] {
		t.Fatalf("expected c to be freed, got %v", freed)
	}
}
