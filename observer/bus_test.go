package observer

import "testing"

func Test_Bus_SubscribeReceivesNotify(t *testing.T) {
	b := New()
	sub := b.Subscribe()
	b.Notify(JobsChanged)

	select {
	case kind := <-sub.C():
		if kind != JobsChanged {
			t.Fatalf("expected JobsChanged, got %v", kind)
		}
	default:
		t.Fatal("expected a buffered event")
	}
}

func Test_Bus_NotifyBeforeSubscribeIsNotDelivered(t *testing.T) {
	b := New()
	b.Notify(JobsChanged)
	sub := b.Subscribe()

	select {
	case kind := <-sub.C():
		t.Fatalf("expected no backlog, got %v", kind)
	default:
	}
}

func Test_Bus_NotifyNeverBlocksOnAFullSubscriber(t *testing.T) {
	b := New()
	sub := b.Subscribe()
	_ = sub
	for i := 0; i < 64; i++ {
		b.Notify(CommandsChanged)
	}
	// Must not have blocked or panicked getting here.
}

func Test_Bus_CloseStopsDeliveryAndClosesChannel(t *testing.T) {
	b := New()
	sub := b.Subscribe()
	sub.Close()
	b.Notify(JobsChanged)

	_, open := <-sub.C()
	if open {
		t.Fatal("expected the channel to be closed")
	}
}

func Test_Bus_MultipleSubscribersAllReceive(t *testing.T) {
	b := New()
	s1 := b.Subscribe()
	s2 := b.Subscribe()
	b.Notify(CommandsChanged)

	for _, s := range []*Subscription{s1, s2} {
		select {
		case kind := <-s.C():
			if kind != CommandsChanged {
				t.Fatalf("expected CommandsChanged, got %v", kind)
			}
		default:
			t.Fatal("expected every subscriber to receive the event")
		}
	}
}
