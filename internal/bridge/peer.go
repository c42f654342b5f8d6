package bridge

import (
	"go.uber.org/zap"

	"github.com/berrythewa/clipbridge/internal/remote"
)

// handlePeer applies one message from the peer.
func (b *Bridge) handlePeer(m *remote.Message) {
	switch m.Type {
	case remote.TypeHello:
		b.logger.Info("Peer connected", zap.String("device", m.Device))

	case remote.TypeNotice:
		b.peerNotice = m
		b.engine.Claim(m.Kind)
		b.logger.Debug("Peer clipboard changed",
			zap.String("id", m.ID),
			zap.Stringer("kind", m.Kind),
			zap.Int64("size", m.Size))

	case remote.TypeRelease:
		b.peerNotice = nil
		b.engine.Release()

	case remote.TypeRequest:
		b.handleRequest(m)

	case remote.TypeData:
		b.handleData(m)
	}
}

func (b *Bridge) handleRequest(m *remote.Message) {
	if m.ID != b.localNotice {
		b.logger.Debug("Stale peer request", zap.String("id", m.ID))
		b.send(&remote.Message{Type: remote.TypeData, ID: m.ID, Kind: m.Kind, Final: true})
		return
	}
	if b.pull != nil {
		b.finishPull()
	}
	b.pull = &pull{id: m.ID, kind: m.Kind, last: b.now()}
	b.engine.Request(m.Kind)
}

func (b *Bridge) handleData(m *remote.Message) {
	if b.dropped[m.ID] {
		if m.Final {
			delete(b.dropped, m.ID)
		}
		return
	}

	asm, ok := b.inbound[m.ID]
	if !ok {
		asm = &assembly{kind: m.Kind}
		b.inbound[m.ID] = asm
	}
	if len(asm.buf)+len(m.Data) > b.opts.MaxPayload {
		b.logger.Warn("Dropping oversized peer payload", zap.String("id", m.ID), zap.Error(ErrPayloadTooLarge))
		delete(b.inbound, m.ID)
		if !m.Final {
			b.dropped[m.ID] = true
		}
		b.answerParked(m.ID, nil)
		return
	}
	asm.buf = append(asm.buf, m.Data...)
	if !m.Final {
		return
	}

	delete(b.inbound, m.ID)
	data := asm.buf
	if len(data) > 0 {
		b.last = &payload{id: m.ID, kind: asm.kind, data: data}
		if b.opts.Cache != nil {
			if cid, err := b.opts.Cache.Put(m.ID, asm.kind, data); err != nil {
				b.logger.Warn("Failed to cache peer payload", zap.Error(err))
			} else {
				b.logger.Debug("Cached peer payload", zap.String("id", m.ID), zap.String("cid", cid))
			}
		}
	}
	b.answerParked(m.ID, data)
}

func (b *Bridge) answerParked(id string, data []byte) {
	r := b.parked
	if r == nil || r.id != id {
		return
	}
	b.parked = nil
	r.reply(data)
}
