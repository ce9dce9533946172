package ringqueue

// WriteHandle is the writer's view of one reserved cell. It is valid until the
// writer's next ReserveWrite call; it must not be kept beyond that.
type WriteHandle struct {
	q    *RingQueue
	buf  []byte
	gen  uint64
	live uint32
}

// Bytes returns the cell to fill, or nil once the handle is stale.
func (h *WriteHandle) Bytes() []byte {
	if !h.Valid() {
		return nil
	}
	return h.buf
}

// Live returns the number of live cells at reservation time, this one included.
func (h *WriteHandle) Live() uint32 { return h.live }

// Valid reports whether the writer has not made another reservation since.
func (h *WriteHandle) Valid() bool {
	return h != nil && h.q.writeGen.Load() == h.gen
}

// Commit publishes the cell to the reader. Committing twice is a no-op.
// It returns ErrStaleHandle if the writer already reserved another cell.
func (h *WriteHandle) Commit() error {
	if h == nil {
		return ErrStaleHandle
	}
	return h.q.commit(h.gen)
}

// ReadHandle is the reader's view of one taken cell. It is valid until the
// reader's next TakeRead call.
type ReadHandle struct {
	q    *RingQueue
	buf  []byte
	gen  uint64
	live uint32
}

// Bytes returns the cell contents, or nil once the handle is stale.
func (h *ReadHandle) Bytes() []byte {
	if !h.Valid() {
		return nil
	}
	return h.buf
}

// Live returns the number of live cells at take time, this one included.
func (h *ReadHandle) Live() uint32 { return h.live }

// Valid reports whether the reader has not taken another cell since.
func (h *ReadHandle) Valid() bool {
	return h != nil && h.q.readGen.Load() == h.gen
}
