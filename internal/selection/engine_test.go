package selection_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/berrythewa/clipbridge/internal/selection"
	"github.com/berrythewa/clipbridge/internal/selection/selectiontest"
	"github.com/berrythewa/clipbridge/internal/types"
)

const (
	ourWindow   selection.Window = 0x400001
	otherWindow selection.Window = 0x500001
)

type typeNote struct {
	kind types.ContentKind
	size int64
}

type dataNote struct {
	kind types.ContentKind
	data string
}

type recorder struct {
	releases int
	types    []typeNote
	data     []dataNote
	done     []types.ContentKind
	supplied []types.ContentKind
	replies  []selection.Reply
}

func (r *recorder) handlers(withSupplier bool) selection.Handlers {
	h := selection.Handlers{
		ReleaseRequested: func() { r.releases++ },
		RemoteTypeAvailable: func(kind types.ContentKind, size int64) {
			r.types = append(r.types, typeNote{kind, size})
		},
		RemoteDataReady: func(kind types.ContentKind, data []byte) {
			r.data = append(r.data, dataNote{kind, string(data)})
		},
		RemoteDataDone: func(kind types.ContentKind) {
			r.done = append(r.done, kind)
		},
	}
	if withSupplier {
		h.SupplyData = func(kind types.ContentKind, reply selection.Reply) {
			r.supplied = append(r.supplied, kind)
			r.replies = append(r.replies, reply)
		}
	}
	return h
}

func newEngine(t *testing.T, p *selectiontest.Platform, withSupplier bool) (*selection.Engine, *recorder) {
	t.Helper()
	rec := &recorder{}
	e, err := selection.New(p, ourWindow, rec.handlers(withSupplier), selection.Config{})
	require.NoError(t, err)
	p.Reset()
	return e, rec
}

func TestNewRegistersForOwnerChanges(t *testing.T) {
	p := selectiontest.NewPlatform()
	_, err := selection.New(p, ourWindow, selection.Handlers{}, selection.Config{})
	require.NoError(t, err)

	assert.ElementsMatch(t, []selection.Atom{p.Atom("PRIMARY"), p.Atom("CLIPBOARD")}, p.WatchedSel)
	assert.Contains(t, p.Watched, ourWindow)
}

func TestNewFailures(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(p *selectiontest.Platform)
		wantErr error
	}{
		{
			name:    "wrong subsystem",
			setup:   func(p *selectiontest.Platform) { p.SubsystemName = "wayland" },
			wantErr: selection.ErrWrongSubsystem,
		},
		{
			name:    "no change notification",
			setup:   func(p *selectiontest.Platform) { p.FailWatch = true },
			wantErr: selection.ErrNoChangeNotify,
		},
		{
			name:    "unresolved kind",
			setup:   func(p *selectiontest.Platform) { p.FailIntern["image/tiff"] = true },
			wantErr: selection.ErrAtomResolution,
		},
		{
			name:    "unresolved selection",
			setup:   func(p *selectiontest.Platform) { p.FailIntern["CLIPBOARD"] = true },
			wantErr: selection.ErrAtomResolution,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := selectiontest.NewPlatform()
			tt.setup(p)
			e, err := selection.New(p, ourWindow, selection.Handlers{}, selection.Config{})
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, e)
		})
	}
}

func TestClaimAdvertisesSingleKind(t *testing.T) {
	p := selectiontest.NewPlatform()
	e, _ := newEngine(t, p, true)

	e.Claim(types.KindPNG)
	assert.Equal(t, ourWindow, p.Owners[p.Atom("PRIMARY")])
	assert.Equal(t, ourWindow, p.Owners[p.Atom("CLIPBOARD")])
	assert.Equal(t, types.KindPNG, e.Owned())

	prop := p.Atom("XSEL_PROP")
	e.Dispatch(selection.OwnershipQuery{
		Requestor: otherWindow,
		Selection: p.Atom("CLIPBOARD"),
		Target:    p.Atom("TARGETS"),
		Property:  prop,
	})

	require.Len(t, p.Changes, 1)
	change := p.Changes[0]
	assert.Equal(t, otherWindow, change.Window)
	assert.Equal(t, prop, change.Property)
	assert.Equal(t, p.Atom("ATOM"), change.Type)
	assert.Equal(t, byte(32), change.Format)
	assert.Equal(t, []uint32{uint32(p.Atom("TARGETS")), uint32(p.Atom("image/png"))}, change.Values)

	n, ok := p.LastNotify()
	require.True(t, ok)
	assert.Equal(t, prop, n.Property)
	assert.Equal(t, otherWindow, n.Requestor)
}

func TestQueryWithoutDataIsRefused(t *testing.T) {
	tests := []struct {
		name     string
		supplier bool
		claim    types.ContentKind
		target   string
	}{
		{"unrelated target", true, types.KindPNG, "UTF8_STRING"},
		{"nothing owned", true, types.KindNone, "TARGETS"},
		{"no supplier", false, types.KindText, "UTF8_STRING"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := selectiontest.NewPlatform()
			e, rec := newEngine(t, p, tt.supplier)
			if tt.claim.Valid() {
				e.Claim(tt.claim)
			}

			e.Dispatch(selection.OwnershipQuery{
				Requestor: otherWindow,
				Selection: p.Atom("CLIPBOARD"),
				Target:    p.Atom(tt.target),
				Property:  p.Atom("XSEL_PROP"),
			})

			require.Len(t, p.Notifies, 1)
			assert.Equal(t, selection.AtomNone, p.Notifies[0].Property)
			assert.Empty(t, p.Changes)
			assert.Empty(t, rec.supplied)
			assert.Equal(t, 1, e.Stats().Refused)
		})
	}
}

func TestPasteEndToEnd(t *testing.T) {
	p := selectiontest.NewPlatform()
	e, rec := newEngine(t, p, true)
	clipboard := p.Atom("CLIPBOARD")
	prop := p.Atom("XSEL_PROP")
	png := p.Atom("image/png")

	e.Claim(types.KindPNG)

	e.Dispatch(selection.OwnershipQuery{Requestor: otherWindow, Selection: clipboard, Target: p.Atom("TARGETS"), Property: prop})
	require.Len(t, p.Notifies, 1)
	assert.Equal(t, prop, p.Notifies[0].Property)

	e.Dispatch(selection.OwnershipQuery{Requestor: otherWindow, Selection: clipboard, Target: png, Property: prop})
	require.Equal(t, []types.ContentKind{types.KindPNG}, rec.supplied)
	assert.Len(t, p.Notifies, 1, "handshake must wait for the reply")

	payload := []byte("\x89PNG fake image bytes")
	rec.replies[0](payload)

	require.Len(t, p.Changes, 2)
	last := p.Changes[1]
	assert.Equal(t, otherWindow, last.Window)
	assert.Equal(t, prop, last.Property)
	assert.Equal(t, png, last.Type)
	assert.Equal(t, byte(8), last.Format)
	assert.Equal(t, payload, last.Data)

	require.Len(t, p.Notifies, 2)
	assert.Equal(t, prop, p.Notifies[1].Property)
	assert.Equal(t, png, p.Notifies[1].Target)

	rec.replies[0](payload)
	assert.Len(t, p.Notifies, 2, "reply is single use")
	assert.Equal(t, 1, e.Stats().Served)
}

func TestObsoleteRequestorUsesTargetAsProperty(t *testing.T) {
	p := selectiontest.NewPlatform()
	e, _ := newEngine(t, p, true)
	e.Claim(types.KindText)

	e.Dispatch(selection.OwnershipQuery{Requestor: otherWindow, Selection: p.Atom("PRIMARY"), Target: p.Atom("TARGETS")})

	require.Len(t, p.Changes, 1)
	assert.Equal(t, p.Atom("TARGETS"), p.Changes[0].Property)
}

func TestEmptyReplyRefuses(t *testing.T) {
	p := selectiontest.NewPlatform()
	e, rec := newEngine(t, p, true)
	e.Claim(types.KindText)

	e.Dispatch(selection.OwnershipQuery{Requestor: otherWindow, Selection: p.Atom("CLIPBOARD"), Target: p.Atom("UTF8_STRING"), Property: p.Atom("P")})
	rec.replies[0](nil)

	n, ok := p.LastNotify()
	require.True(t, ok)
	assert.Equal(t, selection.AtomNone, n.Property)
	assert.Empty(t, p.Changes)
}

func TestReclaimAnswersPendingRequest(t *testing.T) {
	p := selectiontest.NewPlatform()
	e, rec := newEngine(t, p, true)
	e.Claim(types.KindText)

	e.Dispatch(selection.OwnershipQuery{Requestor: otherWindow, Selection: p.Atom("CLIPBOARD"), Target: p.Atom("UTF8_STRING"), Property: p.Atom("P")})
	require.Len(t, rec.replies, 1)

	e.Claim(types.KindJPEG)
	require.Len(t, p.Notifies, 1)
	assert.Equal(t, selection.AtomNone, p.Notifies[0].Property)

	rec.replies[0]([]byte("late"))
	assert.Len(t, p.Notifies, 1, "abandoned reply must not answer twice")
	assert.Empty(t, p.Changes)
}

func TestReleaseIsIdempotent(t *testing.T) {
	p := selectiontest.NewPlatform()
	e, rec := newEngine(t, p, true)

	e.Release()
	assert.Zero(t, p.OwnerCalls)
	assert.Zero(t, rec.releases)

	e.Claim(types.KindText)
	e.Release()
	assert.Equal(t, selection.WindowNone, p.Owners[p.Atom("CLIPBOARD")])
	assert.Equal(t, types.KindNone, e.Owned())

	// the platform tells the old owner about its own release
	e.Dispatch(selection.OwnershipCleared{Selection: p.Atom("CLIPBOARD")})
	e.Dispatch(selection.OwnershipCleared{Selection: p.Atom("PRIMARY")})
	assert.Zero(t, rec.releases)
}

func TestOwnershipLossNotifiesOnce(t *testing.T) {
	p := selectiontest.NewPlatform()
	e, rec := newEngine(t, p, true)
	e.Claim(types.KindText)

	e.Dispatch(selection.OwnershipCleared{Selection: p.Atom("SECONDARY")})
	assert.Zero(t, rec.releases, "untracked selection")

	e.Dispatch(selection.OwnershipCleared{Selection: p.Atom("PRIMARY")})
	e.Dispatch(selection.OwnershipCleared{Selection: p.Atom("CLIPBOARD")})
	assert.Equal(t, 1, rec.releases)
	assert.Equal(t, types.KindNone, e.Owned())
}

func TestOwnerChangeStartsDiscovery(t *testing.T) {
	p := selectiontest.NewPlatform()
	e, _ := newEngine(t, p, false)
	clipboard := p.Atom("CLIPBOARD")

	e.Dispatch(selection.RemoteOwnerChanged{Selection: clipboard, Owner: ourWindow})
	e.Dispatch(selection.RemoteOwnerChanged{Selection: clipboard, Owner: selection.WindowNone})
	e.Dispatch(selection.RemoteOwnerChanged{Selection: p.Atom("SECONDARY"), Owner: otherWindow})
	assert.Empty(t, p.Conversions)

	e.Dispatch(selection.RemoteOwnerChanged{Selection: clipboard, Owner: otherWindow})
	require.Len(t, p.Conversions, 1)
	assert.Equal(t, selectiontest.Conversion{
		Requestor: ourWindow,
		Selection: clipboard,
		Target:    p.Atom("TARGETS"),
		Property:  p.Atom("TARGETS"),
	}, p.Conversions[0])
}

func TestTypeNegotiationFollowsRegistryOrder(t *testing.T) {
	tests := []struct {
		name    string
		offered []string
		want    types.ContentKind
	}{
		{"registry order wins", []string{"TARGETS", "image/jpeg", "UTF8_STRING"}, types.KindText},
		{"single image", []string{"TARGETS", "text/html", "image/bmp"}, types.KindBMP},
		{"no match", []string{"TARGETS", "text/html"}, types.KindNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := selectiontest.NewPlatform()
			e, rec := newEngine(t, p, false)
			targets := p.Atom("TARGETS")

			values := make([]uint32, len(tt.offered))
			for i, name := range tt.offered {
				values[i] = uint32(p.Atom(name))
			}
			p.SetProperty(ourWindow, targets, selection.Property{Type: p.Atom("ATOM"), Format: 32, Values: values})

			e.Dispatch(selection.SelectionDataReady{Requestor: ourWindow, Selection: p.Atom("CLIPBOARD"), Target: targets, Property: targets})

			assert.Equal(t, []typeNote{{tt.want, 0}}, rec.types)
			_, still := p.Property(ourWindow, targets)
			assert.False(t, still, "property must be consumed")
		})
	}
}

func TestMalformedTypeListReportsNone(t *testing.T) {
	p := selectiontest.NewPlatform()
	e, rec := newEngine(t, p, false)
	targets := p.Atom("TARGETS")
	p.SetProperty(ourWindow, targets, selection.Property{Type: p.Atom("ATOM"), Format: 8, Data: []byte("junk")})

	e.Dispatch(selection.SelectionDataReady{Requestor: ourWindow, Target: targets, Property: targets})
	assert.Equal(t, []typeNote{{types.KindNone, 0}}, rec.types)
}

func TestRequestPullsFromTrackedOwner(t *testing.T) {
	p := selectiontest.NewPlatform()
	e, rec := newEngine(t, p, false)
	clipboard := p.Atom("CLIPBOARD")

	e.Dispatch(selection.RemoteOwnerChanged{Selection: clipboard, Owner: otherWindow})
	p.Reset()

	e.Request(types.KindText)
	require.Len(t, p.Conversions, 1)
	assert.Equal(t, selectiontest.Conversion{
		Requestor: ourWindow,
		Selection: clipboard,
		Target:    p.Atom("UTF8_STRING"),
		Property:  p.Atom("SEL_DATA"),
	}, p.Conversions[0])

	p.SetProperty(ourWindow, p.Atom("SEL_DATA"), selection.Property{Type: p.Atom("UTF8_STRING"), Format: 8, Data: []byte("hello guest")})
	e.Dispatch(selection.SelectionDataReady{Requestor: ourWindow, Selection: clipboard, Target: p.Atom("UTF8_STRING"), Property: p.Atom("SEL_DATA")})

	assert.Equal(t, []dataNote{{types.KindText, "hello guest"}}, rec.data)
	assert.Equal(t, []types.ContentKind{types.KindText}, rec.done)
	assert.Empty(t, rec.types)
}

func TestRequestAfterOwnerLeftIsNoop(t *testing.T) {
	p := selectiontest.NewPlatform()
	e, rec := newEngine(t, p, false)
	clipboard := p.Atom("CLIPBOARD")

	e.Dispatch(selection.RemoteOwnerChanged{Selection: clipboard, Owner: otherWindow})
	e.Dispatch(selection.OwnershipCleared{Selection: clipboard})
	p.Reset()

	e.Request(types.KindText)
	assert.Empty(t, p.Conversions)
	assert.Zero(t, p.Flushes)
	assert.Empty(t, rec.types)
	assert.Empty(t, rec.data)
	assert.Zero(t, rec.releases)
}

func TestUnmappedDataTypeReportsNoneOnce(t *testing.T) {
	p := selectiontest.NewPlatform()
	e, rec := newEngine(t, p, false)
	selData := p.Atom("SEL_DATA")
	p.SetProperty(ourWindow, selData, selection.Property{Type: p.Atom("text/html"), Format: 8, Data: []byte("<b>x</b>")})

	assert.NotPanics(t, func() {
		e.Dispatch(selection.SelectionDataReady{Requestor: ourWindow, Property: selData})
	})
	assert.Equal(t, []typeNote{{types.KindNone, 0}}, rec.types)
	assert.Empty(t, rec.data)
	assert.Empty(t, rec.done)
}

func TestRefusedConversionReportsNone(t *testing.T) {
	p := selectiontest.NewPlatform()
	e, rec := newEngine(t, p, false)

	e.Dispatch(selection.SelectionDataReady{Requestor: ourWindow, Target: p.Atom("UTF8_STRING"), Property: selection.AtomNone})
	assert.Equal(t, []typeNote{{types.KindNone, 0}}, rec.types)
	assert.Zero(t, p.PropertyReads)
}

func TestPropertyReadFailureReportsNone(t *testing.T) {
	p := selectiontest.NewPlatform()
	e, rec := newEngine(t, p, false)
	p.FailGetProperty = true

	e.Dispatch(selection.SelectionDataReady{Requestor: ourWindow, Property: p.Atom("SEL_DATA")})
	assert.Equal(t, []typeNote{{types.KindNone, 0}}, rec.types)
}

func startIncremental(t *testing.T, p *selectiontest.Platform, e *selection.Engine, lowerBound uint32) {
	t.Helper()
	selData := p.Atom("SEL_DATA")
	p.SetProperty(ourWindow, selData, selection.Property{Type: p.Atom("INCR"), Format: 32, Values: []uint32{lowerBound}})
	e.Dispatch(selection.SelectionDataReady{Requestor: ourWindow, Target: p.Atom("UTF8_STRING"), Property: selData})
}

func deliverChunk(p *selectiontest.Platform, e *selection.Engine, typ string, data string) {
	selData := p.Atom("SEL_DATA")
	p.SetProperty(ourWindow, selData, selection.Property{Type: p.Atom(typ), Format: 8, Data: []byte(data)})
	e.Dispatch(selection.IncrementalChunk{Window: ourWindow, Property: selData})
}

func TestIncrementalReassembly(t *testing.T) {
	p := selectiontest.NewPlatform()
	e, rec := newEngine(t, p, false)

	startIncremental(t, p, e, 1000)
	assert.Empty(t, rec.types, "marker carries no payload")
	assert.Empty(t, rec.data)

	deliverChunk(p, e, "UTF8_STRING", "chunk one ")
	deliverChunk(p, e, "UTF8_STRING", "chunk two")
	deliverChunk(p, e, "UTF8_STRING", "")

	assert.Equal(t, []typeNote{{types.KindText, 1000}}, rec.types)
	assert.Equal(t, []dataNote{{types.KindText, "chunk one "}, {types.KindText, "chunk two"}}, rec.data)
	assert.Equal(t, []types.ContentKind{types.KindText}, rec.done)

	deliverChunk(p, e, "UTF8_STRING", "stray")
	assert.Len(t, rec.data, 2, "nothing after the terminator")
	assert.Len(t, rec.done, 1)
	assert.Equal(t, 2, e.Stats().Chunks)
}

func TestIncrementalIgnoresOtherProperties(t *testing.T) {
	p := selectiontest.NewPlatform()
	e, rec := newEngine(t, p, false)

	deliverChunk(p, e, "UTF8_STRING", "not in a transfer")
	assert.Empty(t, rec.data)

	startIncremental(t, p, e, 10)
	e.Dispatch(selection.IncrementalChunk{Window: otherWindow, Property: p.Atom("SEL_DATA")})
	e.Dispatch(selection.IncrementalChunk{Window: ourWindow, Property: p.Atom("OTHER")})
	assert.Empty(t, rec.data)
	assert.Empty(t, rec.types)
}

func TestIncrementalUnsupportedTypeResets(t *testing.T) {
	p := selectiontest.NewPlatform()
	e, rec := newEngine(t, p, false)

	startIncremental(t, p, e, 10)
	deliverChunk(p, e, "text/html", "<p>")
	assert.Equal(t, []typeNote{{types.KindNone, 0}}, rec.types)

	deliverChunk(p, e, "UTF8_STRING", "after reset")
	assert.Empty(t, rec.data)
}

func TestIncrementalTerminatorWithOddType(t *testing.T) {
	p := selectiontest.NewPlatform()
	e, rec := newEngine(t, p, false)

	startIncremental(t, p, e, 4)
	deliverChunk(p, e, "image/png", "abcd")
	deliverChunk(p, e, "WEIRD", "")

	assert.Equal(t, []types.ContentKind{types.KindPNG}, rec.done)
}

func TestOutgoingIncrementalTransfer(t *testing.T) {
	p := selectiontest.NewPlatform()
	p.ChunkSize = 4
	e, rec := newEngine(t, p, true)
	prop := p.Atom("XSEL_PROP")
	utf8 := p.Atom("UTF8_STRING")

	e.Claim(types.KindText)
	e.Dispatch(selection.OwnershipQuery{Requestor: otherWindow, Selection: p.Atom("CLIPBOARD"), Target: utf8, Property: prop})
	rec.replies[0]([]byte("abcdefghij"))

	require.Len(t, p.Changes, 1)
	assert.Equal(t, p.Atom("INCR"), p.Changes[0].Type)
	assert.Equal(t, []uint32{10}, p.Changes[0].Values)
	assert.Contains(t, p.Watched, otherWindow)
	n, _ := p.LastNotify()
	assert.Equal(t, prop, n.Property)

	for i := 0; i < 5; i++ {
		e.Dispatch(selection.PropertyDeleted{Window: otherWindow, Property: prop})
	}

	var chunks []string
	for _, c := range p.Changes[1:] {
		assert.Equal(t, utf8, c.Type)
		chunks = append(chunks, string(c.Data))
	}
	assert.Equal(t, []string{"abcd", "efgh", "ij", ""}, chunks)
	assert.Equal(t, int64(10), e.Stats().BytesSent)
}

func TestCloseStopsEngine(t *testing.T) {
	p := selectiontest.NewPlatform()
	e, rec := newEngine(t, p, true)
	e.Claim(types.KindText)

	require.NoError(t, e.Close())
	assert.Equal(t, selection.WindowNone, p.Owners[p.Atom("CLIPBOARD")])
	assert.ErrorIs(t, e.Close(), selection.ErrClosed)

	p.Reset()
	e.Dispatch(selection.OwnershipQuery{Requestor: otherWindow, Target: p.Atom("TARGETS"), Property: p.Atom("P")})
	e.Claim(types.KindPNG)
	e.Request(types.KindText)
	assert.Empty(t, p.Notifies)
	assert.Zero(t, p.OwnerCalls)
	assert.Empty(t, rec.supplied)
}

func TestDispatchIgnoresNil(t *testing.T) {
	p := selectiontest.NewPlatform()
	e, _ := newEngine(t, p, true)
	assert.NotPanics(t, func() { e.Dispatch(nil) })
}

func TestStaleIncrementalIsDropped(t *testing.T) {
	const newOwner selection.Window = 0x600001

	tests := []struct {
		name      string
		interrupt func(p *selectiontest.Platform, e *selection.Engine)
	}{
		{
			name: "owner changes again",
			interrupt: func(p *selectiontest.Platform, e *selection.Engine) {
				e.Dispatch(selection.RemoteOwnerChanged{Selection: p.Atom("CLIPBOARD"), Owner: newOwner})
			},
		},
		{
			name:      "new request",
			interrupt: func(p *selectiontest.Platform, e *selection.Engine) { e.Request(types.KindText) },
		},
		{
			name:      "abandoned by the caller",
			interrupt: func(p *selectiontest.Platform, e *selection.Engine) { e.AbandonIncoming() },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := selectiontest.NewPlatform()
			e, rec := newEngine(t, p, false)
			selData := p.Atom("SEL_DATA")

			e.Dispatch(selection.RemoteOwnerChanged{Selection: p.Atom("CLIPBOARD"), Owner: otherWindow})
			startIncremental(t, p, e, 1000)
			deliverChunk(p, e, "UTF8_STRING", "part one")
			tt.interrupt(p, e)

			// a plain reply: the property write is seen before the notify
			e.Request(types.KindPNG)
			p.SetProperty(ourWindow, selData, selection.Property{Type: p.Atom("image/png"), Format: 8, Data: []byte("PNGDATA")})
			e.Dispatch(selection.IncrementalChunk{Window: ourWindow, Property: selData})
			e.Dispatch(selection.SelectionDataReady{Requestor: ourWindow, Property: selData})

			assert.Equal(t, []typeNote{{types.KindText, 1000}}, rec.types, "no spurious none")
			assert.Equal(t, []dataNote{{types.KindText, "part one"}, {types.KindPNG, "PNGDATA"}}, rec.data)
			assert.Equal(t, []types.ContentKind{types.KindPNG}, rec.done)
		})
	}
}

func TestPlainReplyEndsIncrementalState(t *testing.T) {
	p := selectiontest.NewPlatform()
	e, rec := newEngine(t, p, false)
	selData := p.Atom("SEL_DATA")

	startIncremental(t, p, e, 10)
	p.SetProperty(ourWindow, selData, selection.Property{Type: p.Atom("UTF8_STRING"), Format: 8, Data: []byte("whole")})
	e.Dispatch(selection.SelectionDataReady{Requestor: ourWindow, Property: selData})

	deliverChunk(p, e, "UTF8_STRING", "stray")
	assert.Equal(t, []dataNote{{types.KindText, "whole"}}, rec.data)
	assert.Equal(t, []types.ContentKind{types.KindText}, rec.done)
}

func TestLosingOneSelectionKeepsTheOthers(t *testing.T) {
	p := selectiontest.NewPlatform()
	e, rec := newEngine(t, p, true)
	primary, clipboard := p.Atom("PRIMARY"), p.Atom("CLIPBOARD")
	prop := p.Atom("XSEL_PROP")

	e.Claim(types.KindText)
	e.Dispatch(selection.OwnershipQuery{Requestor: otherWindow, Selection: clipboard, Target: p.Atom("UTF8_STRING"), Property: prop})
	require.Len(t, rec.replies, 1)

	// another client highlights text
	e.Dispatch(selection.OwnershipCleared{Selection: primary})
	assert.Zero(t, rec.releases)
	assert.Equal(t, types.KindText, e.Owned())
	assert.Empty(t, p.Notifies, "pending paste survives")

	rec.replies[0]([]byte("still here"))
	require.Len(t, p.Changes, 1)
	assert.Equal(t, []byte("still here"), p.Changes[0].Data)

	p.Reset()
	e.Dispatch(selection.OwnershipQuery{Requestor: otherWindow, Selection: clipboard, Target: p.Atom("TARGETS"), Property: prop})
	n, ok := p.LastNotify()
	require.True(t, ok)
	assert.Equal(t, prop, n.Property)

	e.Dispatch(selection.OwnershipQuery{Requestor: otherWindow, Selection: primary, Target: p.Atom("TARGETS"), Property: prop})
	n, _ = p.LastNotify()
	assert.Equal(t, selection.AtomNone, n.Property, "lost selection is refused")

	// a repeated clear for the lost selection changes nothing
	e.Dispatch(selection.OwnershipCleared{Selection: primary})
	assert.Zero(t, rec.releases)

	e.Dispatch(selection.OwnershipCleared{Selection: clipboard})
	assert.Equal(t, 1, rec.releases)
	assert.Equal(t, types.KindNone, e.Owned())
}

func TestReleaseSkipsSelectionsAlreadyLost(t *testing.T) {
	p := selectiontest.NewPlatform()
	e, rec := newEngine(t, p, true)

	e.Claim(types.KindText)
	e.Dispatch(selection.OwnershipCleared{Selection: p.Atom("PRIMARY")})
	p.Reset()

	e.Release()
	assert.Equal(t, 1, p.OwnerCalls)
	assert.Equal(t, selection.WindowNone, p.Owners[p.Atom("CLIPBOARD")])
	assert.Equal(t, ourWindow, p.Owners[p.Atom("PRIMARY")], "not ours to clear")
	assert.Zero(t, rec.releases)
}

func TestOutgoingTransferDroppedOnOwnershipChange(t *testing.T) {
	tests := []struct {
		name   string
		change func(e *selection.Engine)
	}{
		{"reclaim", func(e *selection.Engine) { e.Claim(types.KindPNG) }},
		{"release", func(e *selection.Engine) { e.Release() }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := selectiontest.NewPlatform()
			p.ChunkSize = 4
			e, rec := newEngine(t, p, true)
			prop := p.Atom("XSEL_PROP")

			e.Claim(types.KindText)
			e.Dispatch(selection.OwnershipQuery{Requestor: otherWindow, Selection: p.Atom("CLIPBOARD"), Target: p.Atom("UTF8_STRING"), Property: prop})
			rec.replies[0]([]byte("abcdefghij"))
			e.Dispatch(selection.PropertyDeleted{Window: otherWindow, Property: prop})
			require.Len(t, p.Changes, 2)

			tt.change(e)
			e.Dispatch(selection.PropertyDeleted{Window: otherWindow, Property: prop})
			assert.Len(t, p.Changes, 2)
			assert.Equal(t, int64(4), e.Stats().BytesSent)
		})
	}
}
