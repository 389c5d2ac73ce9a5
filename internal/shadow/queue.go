package shadow

// byteQueue is a FIFO of bytes with a fixed capacity.
type byteQueue struct {
	buf      []byte
	capacity int
}

func newByteQueue(capacity int) *byteQueue {
	return &byteQueue{capacity: capacity}
}

func (q *byteQueue) Len() int       { return len(q.buf) }
func (q *byteQueue) Available() int { return q.capacity - len(q.buf) }

// Push appends as much of p as fits and returns the number of bytes taken.
func (q *byteQueue) Push(p []byte) int {
	n := min(len(p), q.Available())
	q.buf = append(q.buf, p[:n]...)
	return n
}

// Pop moves up to len(p) bytes from the head of the queue into p.
func (q *byteQueue) Pop(p []byte) int {
	n := copy(p, q.buf)
	q.buf = q.buf[n:]
	if len(q.buf) == 0 {
		// release the backing array once drained
		q.buf = nil
	}
	return n
}
