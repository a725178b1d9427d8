package boundary

import "testing"

func TestStringValue(t *testing.T) {
	tracker := NewTracker()

	s := NewString(tracker, "hello")
	if s.Value() != "hello" {
		t.Errorf("Value() = %q, want %q", s.Value(), "hello")
	}
	if s.Len() != 5 {
		t.Errorf("Len() = %d, want 5", s.Len())
	}
	if s.IsEmpty() {
		t.Error("IsEmpty() = true, want false")
	}

	s.Release()
	if tracker.Live() != 0 {
		t.Errorf("Live() after release = %d, want 0", tracker.Live())
	}
}

func TestStringEmptyIsValid(t *testing.T) {
	tracker := NewTracker()

	s := NewString(tracker, "")
	if !s.IsEmpty() {
		t.Error("IsEmpty() = false, want true")
	}
	if s.Value() != "" {
		t.Errorf("Value() = %q, want empty", s.Value())
	}
	s.Release()
}

func TestStringDoubleReleasePanics(t *testing.T) {
	tracker := NewTracker()
	s := NewString(tracker, "x")
	s.Release()

	defer func() {
		if recover() == nil {
			t.Error("second Release() did not panic")
		}
	}()
	s.Release()
}

func TestStringUseAfterReleasePanics(t *testing.T) {
	tracker := NewTracker()
	s := NewString(tracker, "x")
	s.Release()

	defer func() {
		if recover() == nil {
			t.Error("Value() after Release() did not panic")
		}
	}()
	_ = s.Value()
}

func TestStringListSnapshot(t *testing.T) {
	tracker := NewTracker()

	l := NewStringList(tracker, []string{"a@example.com", "b@example.com"})
	if l.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", l.Len())
	}
	if l.At(0) != "a@example.com" {
		t.Errorf("At(0) = %q, want %q", l.At(0), "a@example.com")
	}

	values := l.Values()
	l.Release()

	// The snapshot survives release.
	if len(values) != 2 || values[1] != "b@example.com" {
		t.Errorf("Values() snapshot = %v, want two recipients", values)
	}
	if tracker.Live() != 0 {
		t.Errorf("Live() = %d, want 0", tracker.Live())
	}
}

func TestStringListDoubleReleasePanics(t *testing.T) {
	tracker := NewTracker()
	l := NewStringList(tracker, nil)
	l.Release()

	defer func() {
		if recover() == nil {
			t.Error("second Release() did not panic")
		}
	}()
	l.Release()
}

func TestTrackerBalance(t *testing.T) {
	tracker := NewTracker()

	a := NewString(tracker, "a")
	b := NewString(tracker, "b")
	c := NewStringList(tracker, []string{"c"})

	if tracker.Live() != 3 {
		t.Errorf("Live() = %d, want 3", tracker.Live())
	}

	a.Release()
	b.Release()
	c.Release()

	if tracker.Live() != 0 {
		t.Errorf("Live() = %d, want 0", tracker.Live())
	}
	if tracker.Allocated() != 3 {
		t.Errorf("Allocated() = %d, want 3", tracker.Allocated())
	}
	if tracker.Released() != 3 {
		t.Errorf("Released() = %d, want 3", tracker.Released())
	}
}
