package bridge

import (
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/berrythewa/clipbridge/internal/remote"
	"github.com/berrythewa/clipbridge/internal/selection"
	"github.com/berrythewa/clipbridge/internal/types"
)

// Engine callbacks: local clipboard activity forwarded to the peer.

func (b *Bridge) onReleaseRequested() {
	b.logger.Debug("Local application took the clipboard",
		zap.String("peer_notice", noticeID(b.peerNotice)))
	b.peerNotice = nil
	b.parked = nil
}

func (b *Bridge) onRemoteTypeAvailable(kind types.ContentKind, size int64) {
	if p := b.pull; p != nil {
		if kind == types.KindNone {
			// the owner refused or vanished mid request
			b.finishPull()
			return
		}
		if kind == p.kind {
			b.logger.Debug("Local owner sends incrementally",
				zap.String("id", p.id),
				zap.Int64("lower_bound", size))
			p.last = b.now()
			return
		}
	}

	if kind == types.KindNone {
		if b.localNotice == "" {
			return
		}
		b.localNotice = ""
		b.send(&remote.Message{Type: remote.TypeRelease, Kind: types.KindNone})
		return
	}

	id := uuid.New().String()
	if b.send(&remote.Message{Type: remote.TypeNotice, ID: id, Kind: kind, Size: size}) {
		b.localNotice = id
		b.logger.Debug("Announced local clipboard",
			zap.String("id", id),
			zap.Stringer("kind", kind))
	}
}

func (b *Bridge) onRemoteDataReady(kind types.ContentKind, data []byte) {
	p := b.pull
	if p == nil {
		b.logger.Debug("Dropping unrequested clipboard data", zap.Int("size", len(data)))
		return
	}
	p.last = b.now()
	p.bytes += len(data)
	b.send(&remote.Message{Type: remote.TypeData, ID: p.id, Kind: kind, Data: data})
}

func (b *Bridge) onRemoteDataDone(kind types.ContentKind) {
	if b.pull == nil {
		return
	}
	b.finishPull()
}

func (b *Bridge) finishPull() {
	p := b.pull
	b.pull = nil
	b.send(&remote.Message{Type: remote.TypeData, ID: p.id, Kind: p.kind, Final: true})
	b.logger.Debug("Served peer request",
		zap.String("id", p.id),
		zap.Int("bytes", p.bytes))
}

func (b *Bridge) onSupplyData(kind types.ContentKind, reply selection.Reply) {
	n := b.peerNotice
	if n == nil || n.Kind != kind {
		reply(nil)
		return
	}

	if data := b.cached(n.ID, kind); data != nil {
		reply(data)
		return
	}

	if b.parked != nil && b.parked.id != n.ID {
		b.parked.reply(nil)
	}
	if !b.send(&remote.Message{Type: remote.TypeRequest, ID: n.ID, Kind: kind}) {
		reply(nil)
		return
	}
	b.parked = &parkedReply{
		id:       n.ID,
		kind:     kind,
		reply:    reply,
		deadline: b.now().Add(b.opts.ReplyTimeout),
	}
}

// cached returns a payload we already hold for noticeID.
func (b *Bridge) cached(noticeID string, kind types.ContentKind) []byte {
	if b.last != nil && b.last.id == noticeID && b.last.kind == kind {
		return b.last.data
	}
	if b.opts.Cache == nil {
		return nil
	}
	entry, err := b.opts.Cache.Lookup(noticeID)
	if err != nil {
		b.logger.Warn("Payload cache lookup failed", zap.Error(err))
		return nil
	}
	if entry == nil || entry.Kind != kind {
		return nil
	}
	b.logger.Debug("Answering paste from cache",
		zap.String("id", noticeID),
		zap.String("cid", entry.CID))
	return entry.Data
}

func noticeID(m *remote.Message) string {
	if m == nil {
		return ""
	}
	return m.ID
}
