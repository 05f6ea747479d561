package jobs

// DefaultLogLines is the per-job log history kept for UI polling.
const DefaultLogLines = 100

// LogBuffer is a fixed-capacity ring of log lines. The oldest line is
// evicted first. It is not safe for concurrent use; Store guards it.
type LogBuffer struct {
	lines []string
	start int
	size  int
}

// NewLogBuffer creates a ring holding at most capacity lines.
func NewLogBuffer(capacity int) *LogBuffer {
	if capacity <= 0 {
		capacity = DefaultLogLines
	}
	return &LogBuffer{lines: make([]string, capacity)}
}

// Append adds a line, overwriting the oldest one when full.
func (b *LogBuffer) Append(line string) {
	capacity := len(b.lines)
	if b.size < capacity {
		b.lines[(b.start+b.size)%capacity] = line
		b.size++
		return
	}
	b.lines[b.start] = line
	b.start = (b.start + 1) % capacity
}

// Lines returns a copy of the buffered lines in insertion order.
func (b *LogBuffer) Lines() []string {
	out := make([]string, b.size)
	for i := 0; i < b.size; i++ {
		out[i] = b.lines[(b.start+i)%len(b.lines)]
	}
	return out
}

// Len returns the number of buffered lines.
func (b *LogBuffer) Len() int {
	return b.size
}
