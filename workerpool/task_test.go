package workerpool

import "testing"

func Test_WorkerJob_AddDeleteTask(t *testing.T) {
	wj := NewWorkerJob()
	wj.AddTask(1, 0)
	wj.AddTask(1, 1)
	wj.AddTask(2, 0)

	if wj.Total() != 3 {
		t.Fatalf("expected 3 total tasks, got %d", wj.Total())
	}
	if wj.NumTasks(1) != 2 {
		t.Fatalf("expected 2 tasks for job 1, got %d", wj.NumTasks(1))
	}
	if !wj.DeleteTask(1, 0) {
		t.Fatal("expected delete to succeed")
	}
	if wj.DeleteTask(1, 0) {
		t.Fatal("expected second delete of the same task to fail (idempotency)")
	}
	if wj.Total() != 2 {
		t.Fatalf("expected 2 remaining tasks, got %d", wj.Total())
	}
}

func Test_WorkerJob_DeleteJob(t *testing.T) {
	wj := NewWorkerJob()
	wj.AddTask(1, 0)
	wj.AddTask(1, 1)
	wj.AddTask(2, 0)

	n := wj.DeleteJob(1)
	if n != 2 {
		t.Fatalf("expected 2 tasks removed, got %d", n)
	}
	if wj.Total() != 1 {
		t.Fatalf("expected 1 remaining task, got %d", wj.Total())
	}
}
