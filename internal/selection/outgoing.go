package selection

import "go.uber.org/zap"

// startOutgoing answers a request too large for one property write with an
// INCR marker. The requestor deletes the marker to ask for each chunk.
func (e *Engine) startOutgoing(n Notify, data []byte) {
	if err := e.p.WatchProperties(n.Requestor); err != nil {
		e.logger.Warn("Failed to watch requestor for incremental transfer", zap.Error(err))
		e.refuse(n)
		return
	}
	if err := e.p.ChangeProperty32(n.Requestor, n.Property, e.atoms.incr, []uint32{uint32(len(data))}); err != nil {
		e.logger.Warn("Failed to write incremental marker", zap.Error(err))
		e.refuse(n)
		return
	}

	key := outgoingKey{window: n.Requestor, property: n.Property}
	e.st.outgoing[key] = &outgoingTransfer{typ: n.Target, data: data}
	e.stats.Served++
	e.sendNotify(n)

	e.logger.Debug("Started incremental transfer",
		zap.Uint32("requestor", uint32(n.Requestor)),
		zap.Int("size", len(data)))
}

func (e *Engine) handlePropertyDeleted(ev PropertyDeleted) {
	key := outgoingKey{window: ev.Window, property: ev.Property}
	t, ok := e.st.outgoing[key]
	if !ok {
		return
	}

	chunk, last := t.next(e.p.MaxChunkSize())
	if err := e.p.ChangeProperty(ev.Window, ev.Property, t.typ, chunk); err != nil {
		e.logger.Warn("Incremental transfer aborted", zap.Uint32("requestor", uint32(ev.Window)), zap.Error(err))
		delete(e.st.outgoing, key)
		return
	}
	e.stats.BytesSent += int64(len(chunk))
	if last {
		delete(e.st.outgoing, key)
	}
	e.flush()
}
