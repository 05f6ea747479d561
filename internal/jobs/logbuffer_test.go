package jobs

import (
	"strconv"
	"testing"
)

func TestLogBufferEvictsOldest(t *testing.T) {
	testCases := []struct {
		name     string
		capacity int
		appends  int
		wantLen  int
		wantHead string
	}{
		{name: "under capacity", capacity: 5, appends: 3, wantLen: 3, wantHead: "0"},
		{name: "exactly full", capacity: 5, appends: 5, wantLen: 5, wantHead: "0"},
		{name: "wrapped once", capacity: 5, appends: 7, wantLen: 5, wantHead: "2"},
		{name: "wrapped many times", capacity: 3, appends: 100, wantLen: 3, wantHead: "97"},
		{name: "default capacity", capacity: 0, appends: 101, wantLen: DefaultLogLines, wantHead: "1"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			buf := NewLogBuffer(tc.capacity)
			for i := 0; i < tc.appends; i++ {
				buf.Append(strconv.Itoa(i))
			}

			lines := buf.Lines()
			if len(lines) != tc.wantLen || buf.Len() != tc.wantLen {
				t.Fatalf("len = %d, want %d", len(lines), tc.wantLen)
			}
			if lines[0] != tc.wantHead {
				t.Errorf("head = %q, want %q", lines[0], tc.wantHead)
			}
			if last := lines[len(lines)-1]; last != strconv.Itoa(tc.appends-1) {
				t.Errorf("tail = %q, want %d", last, tc.appends-1)
			}
			for i := 1; i < len(lines); i++ {
				prev, _ := strconv.Atoi(lines[i-1])
				cur, _ := strconv.Atoi(lines[i])
				if cur != prev+1 {
					t.Fatalf("order broken at %d: %v", i, lines)
				}
			}
		})
	}
}

func TestLogBufferLinesIsCopy(t *testing.T) {
	buf := NewLogBuffer(2)
	buf.Append("a")
	lines := buf.Lines()
	lines[0] = "changed"
	if got := buf.Lines()[0]; got != "a" {
		t.Errorf("buffer mutated through Lines(): %q", got)
	}
}
