package broadcast

import "testing"

func TestTopicLatestValueWins(t *testing.T) {
	topic := NewTopic[int]()
	if _, ok := topic.Latest(); ok {
		t.Fatal("expected no value before the first publish")
	}

	wake, unsub := topic.Subscribe()
	defer unsub()

	topic.Publish(1)
	topic.Publish(2)
	topic.Publish(3)

	select {
	case <-wake:
	default:
		t.Fatal("expected a wakeup after publishing")
	}

	v, ok := topic.Latest()
	if !ok || v != 3 {
		t.Fatalf("Latest() = (%v, %v), want (3, true)", v, ok)
	}
}

func TestTopicSlowSubscriberNeverBlocksPublisher(t *testing.T) {
	topic := NewTopic[int]()
	wake, unsub := topic.Subscribe()
	defer unsub()

	for i := 0; i < 100; i++ {
		topic.Publish(i)
	}

	v, _ := topic.Latest()
	if v != 99 {
		t.Fatalf("Latest() = %d, want 99", v)
	}
	select {
	case <-wake:
	default:
		t.Fatal("expected at least one coalesced wakeup")
	}
}

func TestTopicUnsubscribeStopsWakeups(t *testing.T) {
	topic := NewTopic[int]()
	wake, unsub := topic.Subscribe()
	unsub()

	topic.Publish(1)

	select {
	case <-wake:
		t.Fatal("unsubscribed channel should not receive wakeups")
	default:
	}
	if topic.HasSubscribers() {
		t.Fatal("expected no subscribers after unsubscribe")
	}
}

func TestControlChannelExclusiveAccess(t *testing.T) {
	ch := NewControlChannel[string](4)

	release, err := ch.Acquire()
	if err != nil {
		t.Fatalf("first Acquire: %v", err)
	}

	if _, err := ch.Acquire(); err == nil {
		t.Fatal("expected second Acquire to fail while held")
	}

	release()

	release2, err := ch.Acquire()
	if err != nil {
		t.Fatalf("Acquire after release: %v", err)
	}
	release2()
}

func TestControlChannelDrainIsNonBlockingAndOrdered(t *testing.T) {
	ch := NewControlChannel[int](8)
	release, err := ch.Acquire()
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer release()

	if cmds := ch.Drain(); len(cmds) != 0 {
		t.Fatalf("expected empty drain, got %v", cmds)
	}

	ch.Send(1)
	ch.Send(2)
	ch.Send(3)

	cmds := ch.Drain()
	want := []int{1, 2, 3}
	if len(cmds) != len(want) {
		t.Fatalf("Drain() = %v, want %v", cmds, want)
	}
	for i := range want {
		if cmds[i] != want[i] {
			t.Fatalf("Drain() = %v, want %v", cmds, want)
		}
	}
}
