package stats

import "testing"

func Test_Counter_AccumulatesAcrossCalls(t *testing.T) {
	sr := NewStatsReceiver()
	c := sr.Counter("requests")
	c.Inc(1)
	c.Inc(2)
	// Fetching the same name again must return the same underlying counter.
	got := sr.Counter("requests")
	if got == nil {
		t.Fatal("expected a counter")
	}
	if n := got.(counterAdapter).c.Count(); n != 3 {
		t.Fatalf("expected accumulated count 3, got %d", n)
	}
}

func Test_Scope_PrefixesNames(t *testing.T) {
	sr := NewStatsReceiver()
	scoped := sr.Scope("scheduler", "jobs_removed")
	scoped.Counter("success").Inc(1)
	// A differently-scoped counter of the same leaf name must be independent.
	sr.Scope("other").Counter("success").Inc(5)
	if n := scoped.Counter("success").(counterAdapter).c.Count(); n != 1 {
		t.Fatalf("expected the scoped counter to stay at 1, got %d", n)
	}
}

func Test_Gauge_UpdatesValue(t *testing.T) {
	sr := NewStatsReceiver()
	g := sr.Gauge("busy_cpu")
	g.Update(4)
	g.Update(7)
	if v := g.(gaugeAdapter).g.Value(); v != 7 {
		t.Fatalf("expected gauge value 7, got %d", v)
	}
}

func Test_Latency_RecordsDurationsWithoutPanicking(t *testing.T) {
	sr := NewStatsReceiver()
	l := sr.Latency("task_exec_time")
	l.Time(0)
}

func Test_NilStatsReceiver_DiscardsEverythingAndIsASingleton(t *testing.T) {
	a := NilStatsReceiver()
	b := NilStatsReceiver()
	if a != b {
		t.Fatal("expected NilStatsReceiver to return the same instance")
	}
	a.Counter("x").Inc(100)
	a.Gauge("y").Update(100)
	a.Latency("z").Time(0)
	a.Scope("nested").Counter("x").Inc(1)
}
