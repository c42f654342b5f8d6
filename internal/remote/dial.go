package remote

import (
	"context"
	"fmt"

	ma "github.com/multiformats/go-multiaddr"
	manet "github.com/multiformats/go-multiaddr/net"
)

// Listen opens a listener on a multiaddr such as /unix/run/clipbridge.sock
// or /ip4/127.0.0.1/tcp/7020.
func Listen(addr string) (manet.Listener, error) {
	maddr, err := ma.NewMultiaddr(addr)
	if err != nil {
		return nil, fmt.Errorf("parse listen address %q: %w", addr, err)
	}
	l, err := manet.Listen(maddr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", maddr, err)
	}
	return l, nil
}

// Accept waits for the next peer on l.
func Accept(l manet.Listener, opts Options) (*Conn, error) {
	c, err := l.Accept()
	if err != nil {
		return nil, err
	}
	return NewConn(c, opts), nil
}

// Dial connects to the peer at a multiaddr.
func Dial(ctx context.Context, addr string, opts Options) (*Conn, error) {
	maddr, err := ma.NewMultiaddr(addr)
	if err != nil {
		return nil, fmt.Errorf("parse dial address %q: %w", addr, err)
	}
	var d manet.Dialer
	c, err := d.DialContext(ctx, maddr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", maddr, err)
	}
	return NewConn(c, opts), nil
}
