package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	ma "github.com/multiformats/go-multiaddr"
	manet "github.com/multiformats/go-multiaddr/net"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/berrythewa/clipbridge/internal/bridge"
	"github.com/berrythewa/clipbridge/internal/config"
	"github.com/berrythewa/clipbridge/internal/platform/x11"
	"github.com/berrythewa/clipbridge/internal/remote"
	"github.com/berrythewa/clipbridge/internal/storage"
)

const (
	minRedial = time.Second
	maxRedial = 30 * time.Second
)

func newRunCmd() *cobra.Command {
	var noCache bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the clipboard bridge in the foreground",
		Long: `Connect to the X display, reach the peer over the configured
multiaddr and keep the clipboards in sync until interrupted.
A lost peer is re-accepted or re-dialed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			var cache bridge.Cache
			if !noCache {
				store, err := storage.Open(storage.Options{
					DBPath:    cfg.Storage.DBPath,
					KeepItems: cfg.Storage.KeepItems,
					Logger:    logger,
				})
				if err != nil {
					return fmt.Errorf("failed to open cache: %w", err)
				}
				defer store.Close()
				cache = store
			}

			return run(ctx, cfg, cache, logger)
		},
	}

	cmd.Flags().BoolVar(&noCache, "no-cache", false, "do not keep peer payloads on disk")
	return cmd
}

// run serves one peer connection at a time until ctx is done or the
// display goes away.
func run(ctx context.Context, cfg *config.Config, cache bridge.Cache, logger *zap.Logger) error {
	display, err := x11.Open(cfg.Display.Name, logger.Named("x11"))
	if err != nil {
		return fmt.Errorf("failed to open display: %w", err)
	}
	defer display.Close()

	events := display.Events(ctx)
	connOpts := remote.Options{
		CompressThreshold: cfg.Transfer.CompressThreshold,
		Logger:            logger.Named("remote"),
	}

	var connect func(context.Context) (remote.Channel, error)
	if cfg.Remote.Listen != "" {
		l, err := remote.Listen(cfg.Remote.Listen)
		if err != nil {
			return err
		}
		defer l.Close()
		logger.Info("Waiting for peer", zap.String("listen", l.Multiaddr().String()))
		connect = func(ctx context.Context) (remote.Channel, error) {
			return accept(ctx, l, connOpts)
		}
	} else {
		connect = func(ctx context.Context) (remote.Channel, error) {
			return redial(ctx, cfg.Remote.Dial, connOpts, logger)
		}
	}

	for {
		ch, err := connect(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		b, err := bridge.New(bridge.Options{
			Platform:     display,
			Window:       display.Window(),
			Events:       events,
			Channel:      ch,
			Cache:        cache,
			Selections:   cfg.Display.Selections,
			DeviceID:     cfg.DeviceID,
			IdleTimeout:  cfg.Transfer.IdleTimeout,
			ReplyTimeout: cfg.Transfer.ReplyTimeout,
			Logger:       logger.Named("bridge"),
		})
		if err != nil {
			ch.Close()
			return err
		}

		logger.Info("Bridge running", zap.Strings("selections", cfg.Display.Selections))
		err = b.Run(ctx)
		if err == nil {
			return nil
		}
		logger.Warn("Peer lost", zap.Error(err))
	}
}

// accept waits for a peer, giving up when ctx is done.
func accept(ctx context.Context, l manet.Listener, opts remote.Options) (remote.Channel, error) {
	type result struct {
		c   *remote.Conn
		err error
	}
	res := make(chan result, 1)
	go func() {
		c, err := remote.Accept(l, opts)
		res <- result{c, err}
	}()

	select {
	case r := <-res:
		if r.err != nil {
			return nil, fmt.Errorf("accept: %w", r.err)
		}
		opts.Logger.Info("Peer connected", zap.Stringer("addr", r.c.RemoteAddr()))
		return r.c, nil
	case <-ctx.Done():
		// closing the listener unblocks the pending Accept
		l.Close()
		return nil, ctx.Err()
	}
}

// redial keeps dialing addr with exponential backoff until it connects.
func redial(ctx context.Context, addr string, opts remote.Options, logger *zap.Logger) (remote.Channel, error) {
	// a malformed address never heals
	if _, err := ma.NewMultiaddr(addr); err != nil {
		return nil, fmt.Errorf("parse dial address %q: %w", addr, err)
	}

	delay := minRedial
	for {
		c, err := remote.Dial(ctx, addr, opts)
		if err == nil {
			logger.Info("Connected to peer", zap.String("addr", addr))
			return c, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		logger.Debug("Dial failed, retrying", zap.Duration("in", delay), zap.Error(err))

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		delay *= 2
		if delay > maxRedial {
			delay = maxRedial
		}
	}
}
