package boundary

import "fmt"

// String is an owned byte sequence with an explicit length. It is allocated by
// a Context accessor and must be released exactly once by the receiver.
//
// An empty String is a valid value, distinct from "absent": accessors that can
// fail (Get on a missing key, Data before the DATA phase) return an empty
// String, and the caller consults the matching presence check to tell the two
// apart.
type String struct {
	tracker  *Tracker
	value    string
	released bool
}

// NewString allocates an owned copy of value against the tracker.
func NewString(t *Tracker, value string) *String {
	t.allocated()
	return &String{tracker: t, value: value}
}

// Value returns the underlying text. It panics if the String was released.
func (s *String) Value() string {
	if s.released {
		panic("boundary: String read after release")
	}
	return s.value
}

// Len returns the byte length of the value. It panics if the String was
// released.
func (s *String) Len() int {
	if s.released {
		panic("boundary: String read after release")
	}
	return len(s.value)
}

// IsEmpty reports whether the value is the empty string.
func (s *String) IsEmpty() bool {
	return s.Len() == 0
}

// Release returns the String to its tracker. Releasing twice panics.
func (s *String) Release() {
	if s.released {
		panic("boundary: String released twice")
	}
	s.released = true
	s.value = ""
	s.tracker.released()
}

// StringList is an ordered sequence of owned strings with a count. It follows
// the same single-release discipline as String; Release cascades to every
// element.
type StringList struct {
	tracker  *Tracker
	values   []string
	released bool
}

// NewStringList allocates an owned copy of values against the tracker.
func NewStringList(t *Tracker, values []string) *StringList {
	t.allocated()
	copied := make([]string, len(values))
	copy(copied, values)
	return &StringList{tracker: t, values: copied}
}

// Len returns the number of elements. It panics if the list was released.
func (l *StringList) Len() int {
	if l.released {
		panic("boundary: StringList read after release")
	}
	return len(l.values)
}

// At returns the element at index i. It panics if the list was released or the
// index is out of range.
func (l *StringList) At(i int) string {
	if l.released {
		panic("boundary: StringList read after release")
	}
	if i < 0 || i >= len(l.values) {
		panic(fmt.Sprintf("boundary: StringList index %d out of range [0, %d)", i, len(l.values)))
	}
	return l.values[i]
}

// Values returns a snapshot of all elements. The snapshot remains valid after
// Release. It panics if the list was already released.
func (l *StringList) Values() []string {
	if l.released {
		panic("boundary: StringList read after release")
	}
	out := make([]string, len(l.values))
	copy(out, l.values)
	return out
}

// Release returns the list and every element to its tracker. Releasing twice
// panics.
func (l *StringList) Release() {
	if l.released {
		panic("boundary: StringList released twice")
	}
	l.released = true
	l.values = nil
	l.tracker.released()
}
