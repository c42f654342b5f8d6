// Package x11 implements selection.Platform over an X server connection.
package x11

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/xfixes"
	"github.com/BurntSushi/xgb/xproto"
	"go.uber.org/zap"

	"github.com/berrythewa/clipbridge/internal/selection"
)

// ErrNoXFixes is returned by Open when the server lacks the XFIXES extension.
var ErrNoXFixes = errors.New("x11: XFIXES extension unavailable")

// maxPropertyWords bounds a single GetProperty read, in 32-bit units.
const maxPropertyWords = 0x1fffffff

// Platform is an X connection plus the hidden window the engine works through.
type Platform struct {
	conn   *xgb.Conn
	window xproto.Window
	chunk  int
	logger *zap.Logger

	mu    sync.Mutex
	names map[selection.Atom]string
}

// Open connects to display (empty means $DISPLAY) and creates the engine window.
func Open(display string, logger *zap.Logger) (*Platform, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	conn, err := xgb.NewConnDisplay(display)
	if err != nil {
		return nil, fmt.Errorf("connect to X display %q: %w", display, err)
	}

	if err := xfixes.Init(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: %v", ErrNoXFixes, err)
	}
	// the server only sends XFIXES events to clients that announced a version
	if _, err := xfixes.QueryVersion(conn, 5, 0).Reply(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: query version: %v", ErrNoXFixes, err)
	}

	setup := xproto.Setup(conn)
	screen := setup.DefaultScreen(conn)

	wid, err := xproto.NewWindowId(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("allocate window id: %w", err)
	}
	err = xproto.CreateWindowChecked(conn, 0, wid, screen.Root, 0, 0, 1, 1, 0,
		xproto.WindowClassCopyFromParent, screen.RootVisual,
		xproto.CwEventMask, []uint32{xproto.EventMaskPropertyChange}).Check()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("create selection window: %w", err)
	}

	p := &Platform{
		conn:   conn,
		window: wid,
		// a quarter of the maximum request, in bytes
		chunk:  int(setup.MaximumRequestLength),
		logger: logger,
		names:  make(map[selection.Atom]string),
	}

	logger.Info("Connected to X display",
		zap.String("display", display),
		zap.Uint32("window", uint32(wid)),
		zap.Int("chunk_size", p.chunk))

	return p, nil
}

// Window is the window selection.New should be bound to.
func (p *Platform) Window() selection.Window { return selection.Window(p.window) }

// Close destroys the engine window and closes the connection, which also
// ends the Events goroutine.
func (p *Platform) Close() error {
	xproto.DestroyWindow(p.conn, p.window)
	p.conn.Close()
	return nil
}

// Events decodes server events until the connection closes or ctx is done.
func (p *Platform) Events(ctx context.Context) <-chan selection.Event {
	out := make(chan selection.Event, 64)
	go func() {
		defer close(out)
		for {
			ev, xerr := p.conn.WaitForEvent()
			if ev == nil && xerr == nil {
				p.logger.Debug("X connection closed")
				return
			}
			if xerr != nil {
				// protocol errors from unchecked requests, e.g. a requestor
				// window destroyed mid transfer
				p.logger.Debug("X protocol error", zap.String("error", xerr.Error()))
				continue
			}

			se := Decode(ev)
			if se == nil {
				continue
			}
			select {
			case out <- se:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

func (p *Platform) Subsystem() string { return selection.SubsystemX11 }

func (p *Platform) InternAtom(name string) (selection.Atom, error) {
	reply, err := xproto.InternAtom(p.conn, false, uint16(len(name)), name).Reply()
	if err != nil {
		return selection.AtomNone, fmt.Errorf("intern atom %s: %w", name, err)
	}
	a := selection.Atom(reply.Atom)
	p.mu.Lock()
	p.names[a] = name
	p.mu.Unlock()
	return a, nil
}

func (p *Platform) AtomName(a selection.Atom) string {
	if a == selection.AtomNone {
		return "None"
	}
	p.mu.Lock()
	name, ok := p.names[a]
	p.mu.Unlock()
	if ok {
		return name
	}

	reply, err := xproto.GetAtomName(p.conn, xproto.Atom(a)).Reply()
	if err != nil {
		return fmt.Sprintf("atom(%d)", a)
	}
	p.mu.Lock()
	p.names[a] = reply.Name
	p.mu.Unlock()
	return reply.Name
}

func (p *Platform) SetSelectionOwner(owner selection.Window, sel selection.Atom) error {
	xproto.SetSelectionOwner(p.conn, xproto.Window(owner), xproto.Atom(sel), xproto.TimeCurrentTime)
	return nil
}

func (p *Platform) ConvertSelection(requestor selection.Window, sel, target, property selection.Atom) error {
	xproto.ConvertSelection(p.conn, xproto.Window(requestor), xproto.Atom(sel),
		xproto.Atom(target), xproto.Atom(property), xproto.TimeCurrentTime)
	return nil
}

func (p *Platform) ChangeProperty(w selection.Window, property, typ selection.Atom, data []byte) error {
	xproto.ChangeProperty(p.conn, xproto.PropModeReplace, xproto.Window(w),
		xproto.Atom(property), xproto.Atom(typ), 8, uint32(len(data)), data)
	return nil
}

func (p *Platform) ChangeProperty32(w selection.Window, property, typ selection.Atom, values []uint32) error {
	xproto.ChangeProperty(p.conn, xproto.PropModeReplace, xproto.Window(w),
		xproto.Atom(property), xproto.Atom(typ), 32, uint32(len(values)), encode32(values))
	return nil
}

func (p *Platform) GetProperty(w selection.Window, property selection.Atom, del bool) (*selection.Property, error) {
	reply, err := xproto.GetProperty(p.conn, del, xproto.Window(w), xproto.Atom(property),
		xproto.GetPropertyTypeAny, 0, maxPropertyWords).Reply()
	if err != nil {
		return nil, fmt.Errorf("get property %s: %w", p.AtomName(property), err)
	}
	return propertyFromReply(reply), nil
}

func (p *Platform) SendSelectionNotify(n selection.Notify) error {
	ev := xproto.SelectionNotifyEvent{
		Time:      xproto.Timestamp(n.Time),
		Requestor: xproto.Window(n.Requestor),
		Selection: xproto.Atom(n.Selection),
		Target:    xproto.Atom(n.Target),
		Property:  xproto.Atom(n.Property),
	}
	xproto.SendEvent(p.conn, false, xproto.Window(n.Requestor), xproto.EventMaskNoEvent, string(ev.Bytes()))
	return nil
}

func (p *Platform) WatchProperties(w selection.Window) error {
	xproto.ChangeWindowAttributes(p.conn, xproto.Window(w), xproto.CwEventMask,
		[]uint32{xproto.EventMaskPropertyChange})
	return nil
}

func (p *Platform) WatchSelection(w selection.Window, sel selection.Atom) error {
	mask := uint32(xfixes.SelectionEventMaskSetSelectionOwner |
		xfixes.SelectionEventMaskSelectionWindowDestroy |
		xfixes.SelectionEventMaskSelectionClientClose)
	err := xfixes.SelectSelectionInputChecked(p.conn, xproto.Window(w), xproto.Atom(sel), mask).Check()
	if err != nil {
		return fmt.Errorf("select selection input for %s: %w", p.AtomName(sel), err)
	}
	return nil
}

func (p *Platform) MaxChunkSize() int { return p.chunk }

// Flush is a no-op: xgb writes each request as it is issued.
func (p *Platform) Flush() error { return nil }

func encode32(values []uint32) []byte {
	buf := make([]byte, 4*len(values))
	for i, v := range values {
		xgb.Put32(buf[4*i:], v)
	}
	return buf
}

func propertyFromReply(reply *xproto.GetPropertyReply) *selection.Property {
	prop := &selection.Property{
		Type:   selection.Atom(reply.Type),
		Format: reply.Format,
	}
	switch reply.Format {
	case 32:
		n := len(reply.Value) / 4
		prop.Values = make([]uint32, n)
		for i := 0; i < n; i++ {
			prop.Values[i] = xgb.Get32(reply.Value[4*i:])
		}
	default:
		prop.Data = reply.Value
	}
	return prop
}
