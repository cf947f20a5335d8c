package queue

import (
	"testing"

	"github.com/scootdev/dispatch/job"
)

func mkJob(id int64, priority int) *job.Job {
	return &job.Job{Id: id, Priority: priority}
}

func Test_Queue_PopHighestPriorityFirst(t *testing.T) {
	q := New()
	q.Push(mkJob(1, 1), 1)
	q.Push(mkJob(2, 5), 2)
	q.Push(mkJob(3, 3), 3)

	j, ok := q.Pop()
	if !ok || j.Id != 2 {
		t.Fatalf("expected job 2 (priority 5) first, got %+v", j)
	}
	j, ok = q.Pop()
	if !ok || j.Id != 3 {
		t.Fatalf("expected job 3 (priority 3) second, got %+v", j)
	}
	j, ok = q.Pop()
	if !ok || j.Id != 1 {
		t.Fatalf("expected job 1 (priority 1) last, got %+v", j)
	}
	if _, ok := q.Pop(); ok {
		t.Fatal("expected queue to be empty")
	}
}

func Test_Queue_PopSkipsJobsWithUnmetDependencies(t *testing.T) {
	blocked := mkJob(1, 10)
	ready := mkJob(2, 1)
	blocked.Id, ready.Id = 1, 2
	_, _, err := job.BuildJobGroup(job.ChainSet{{"ready", "blocked"}}, map[string]*job.Job{
		"ready":   ready,
		"blocked": blocked,
	})
	if err != nil {
		t.Fatalf("unexpected error building job group: %v", err)
	}

	q := New()
	q.Push(blocked, 1)
	q.Push(ready, 1)

	j, ok := q.Pop()
	if !ok || j.Id != 2 {
		t.Fatalf("expected only the ready job to pop, got %+v ok=%v", j, ok)
	}
	if _, ok := q.Pop(); ok {
		t.Fatal("blocked job should not have popped")
	}
}

func Test_Queue_TieBreaksByGroupThenInsertionOrder(t *testing.T) {
	q := New()
	q.Push(mkJob(1, 5), 2)
	q.Push(mkJob(2, 5), 1)
	q.Push(mkJob(3, 5), 1)

	j, _ := q.Pop()
	if j.Id != 2 {
		t.Fatalf("expected job 2 (lower groupId) first, got %d", j.Id)
	}
	j, _ = q.Pop()
	if j.Id != 3 {
		t.Fatalf("expected job 3 (same group, later insertion) second, got %d", j.Id)
	}
	j, _ = q.Pop()
	if j.Id != 1 {
		t.Fatalf("expected job 1 (higher groupId) last, got %d", j.Id)
	}
}

func Test_Queue_DeleteGroup(t *testing.T) {
	q := New()
	q.Push(mkJob(1, 1), 9)
	q.Push(mkJob(2, 1), 9)
	q.Push(mkJob(3, 1), 8)

	removed := q.DeleteGroup(9)
	if len(removed) != 2 {
		t.Fatalf("expected 2 removed, got %d", len(removed))
	}
	if q.Len() != 1 {
		t.Fatalf("expected 1 remaining, got %d", q.Len())
	}
}

func Test_Queue_DeleteReleasesDAGDependents(t *testing.T) {
	pred := mkJob(1, 1)
	succ := mkJob(2, 1)
	_, _, err := job.BuildJobGroup(job.ChainSet{{"pred", "succ"}}, map[string]*job.Job{
		"pred": pred,
		"succ": succ,
	})
	if err != nil {
		t.Fatalf("unexpected error building job group: %v", err)
	}

	q := New()
	q.Push(pred, 1)
	q.Push(succ, 1)

	if _, ok := q.Delete(1); !ok {
		t.Fatal("expected to delete job 1")
	}
	if succ.NumDepends() != 0 {
		t.Fatalf("expected deleting the predecessor to release its successor, still depends on %d", succ.NumDepends())
	}
	j, ok := q.Pop()
	if !ok || j.Id != 2 {
		t.Fatalf("expected the released successor to become poppable, got %+v ok=%v", j, ok)
	}
}

func Test_Queue_DeleteGroupReleasesDAGDependents(t *testing.T) {
	pred := mkJob(1, 1)
	succ := mkJob(2, 1)
	_, _, err := job.BuildJobGroup(job.ChainSet{{"pred", "succ"}}, map[string]*job.Job{
		"pred": pred,
		"succ": succ,
	})
	if err != nil {
		t.Fatalf("unexpected error building job group: %v", err)
	}

	q := New()
	q.Push(pred, 5)
	q.Push(succ, 5)

	removed := q.DeleteGroup(5)
	if len(removed) != 2 {
		t.Fatalf("expected both jobs removed, got %d", len(removed))
	}
	if succ.NumDepends() != 0 {
		t.Fatalf("expected the successor's dependency count to be released, still depends on %d", succ.NumDepends())
	}
}

func Test_Queue_GetByIdAndDelete(t *testing.T) {
	q := New()
	q.Push(mkJob(7, 1), 1)

	j, ok := q.GetById(7)
	if !ok || j.Id != 7 {
		t.Fatal("expected to find job 7")
	}
	removed, ok := q.Delete(7)
	if !ok || removed.Id != 7 {
		t.Fatal("expected delete to return job 7")
	}
	if _, ok := q.GetById(7); ok {
		t.Fatal("expected job 7 to be gone")
	}
}
