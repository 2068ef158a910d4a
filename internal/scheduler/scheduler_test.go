package scheduler

import (
	"testing"
	"time"
)

func TestImmediateModeRunsSynchronously(t *testing.T) {
	s := New(Immediate)

	ran := false
	s.Schedule(func() { ran = true }, time.Hour)
	if !ran {
		t.Error("immediate mode must run the task before Schedule returns")
	}
	if got := s.Pending(); got != 0 {
		t.Errorf("pending = %d, want 0", got)
	}
}

func TestTickingModeDefersUntilDrain(t *testing.T) {
	s := New(Ticking)

	ran := false
	s.Schedule(func() { ran = true }, 0)
	if ran {
		t.Fatal("ticking mode must not run tasks on enqueue")
	}
	if got := s.Pending(); got != 1 {
		t.Fatalf("pending = %d, want 1", got)
	}

	s.Drain(false)
	if !ran {
		t.Error("drain must execute the due task")
	}
	if got := s.Pending(); got != 0 {
		t.Errorf("pending = %d, want 0 after drain", got)
	}
}

func TestDelayedTaskNotDueYet(t *testing.T) {
	s := New(Ticking)
	now := time.Now()
	s.now = func() time.Time { return now }

	ran := false
	s.Schedule(func() { ran = true }, time.Minute)

	s.Drain(false)
	if ran {
		t.Fatal("task ran before its delay elapsed")
	}

	now = now.Add(2 * time.Minute)
	s.Drain(false)
	if !ran {
		t.Error("task must run once its due time passes")
	}
}

func TestCancelRemovesPendingTask(t *testing.T) {
	s := New(Ticking)

	ran := false
	handle := s.Schedule(func() { ran = true }, 0)
	s.Cancel(handle)

	s.Drain(false)
	if ran {
		t.Error("canceled task must not run")
	}

	// Canceling again, or canceling an unknown handle, is a no-op.
	s.Cancel(handle)
	s.Cancel(Handle(999))
}

func TestTaskEnqueuedDuringDrainRunsInSameDrain(t *testing.T) {
	s := New(Ticking)

	var order []string
	s.Schedule(func() {
		order = append(order, "first")
		s.Schedule(func() { order = append(order, "second") }, 0)
	}, 0)

	s.Drain(false)
	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Errorf("order = %v, want [first second]", order)
	}
}

func TestPollRetriedAcrossDrains(t *testing.T) {
	s := New(Ticking)

	calls := 0
	s.PollUntil(func() bool {
		calls++
		return calls >= 3
	})

	s.Drain(false)
	s.Drain(false)
	if calls != 2 {
		t.Fatalf("calls = %d, want 2 after two drains", calls)
	}
	s.Drain(false)
	s.Drain(false)
	if calls != 3 {
		t.Errorf("calls = %d, want 3: satisfied polls must not be retried", calls)
	}
}

func TestImmediatePollLoopsUntilTrue(t *testing.T) {
	s := New(Immediate)

	calls := 0
	s.PollUntil(func() bool {
		calls++
		return calls >= 5
	})
	if calls != 5 {
		t.Errorf("calls = %d, want 5", calls)
	}
}

func TestPanickingTaskDoesNotWedgeQueue(t *testing.T) {
	s := New(Ticking)

	ran := false
	s.Schedule(func() { panic("boom") }, 0)
	s.Schedule(func() { ran = true }, 0)

	s.Drain(false)
	if !ran {
		t.Error("tasks after a panicking task must still run")
	}
	if got := s.Pending(); got != 0 {
		t.Errorf("pending = %d, want 0", got)
	}
}

func TestPanickingPollTreatedAsSatisfied(t *testing.T) {
	s := New(Ticking)

	s.PollUntil(func() bool { panic("boom") })
	s.Drain(false)

	calls := 0
	s.PollUntil(func() bool {
		calls++
		return true
	})
	s.Drain(false)
	if calls != 1 {
		t.Errorf("calls = %d, want 1: panicked poll must be dropped", calls)
	}
}
