package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nixxel-company-limited/escpos-feed-printer/adapter"
	"github.com/nixxel-company-limited/escpos-feed-printer/cache"
	"github.com/nixxel-company-limited/escpos-feed-printer/feed"
	"github.com/nixxel-company-limited/escpos-feed-printer/picture"
	"github.com/nixxel-company-limited/escpos-feed-printer/poller"
	"github.com/nixxel-company-limited/escpos-feed-printer/printer"
	"github.com/nixxel-company-limited/escpos-feed-printer/relay"
)

// connect builds the printer connection. Nothing is opened until the
// first job.
func (a *app) connect() (*printer.Connection, error) {
	if err := a.cfg.Validate(); err != nil {
		return nil, err
	}
	t, policy, err := a.cfg.Transport()
	if err != nil {
		return nil, err
	}
	conn, err := printer.New(t, policy, a.logger)
	if err != nil {
		return nil, err
	}
	a.logger.Info().
		Str("transport", t.String()).
		Bool("persistent", conn.Persistent()).
		Msg("printer configured")
	return conn, nil
}

func (a *app) openStore() (cache.Store, error) {
	switch a.cfg.Cache.Backend {
	case "bolt":
		store, err := cache.OpenBoltStore(a.cfg.Cache.Path)
		if err != nil {
			return nil, fmt.Errorf("open cache: %w", err)
		}
		return store, nil
	default:
		return cache.NewJSONStore(a.cfg.Cache.Path), nil
	}
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func (a *app) watchCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Poll the feed and print every new item once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.cfg.ValidateFeed(); err != nil {
				return err
			}
			ctx, stop := signalContext(cmd.Context())
			defer stop()

			conn, err := a.connect()
			if err != nil {
				return err
			}
			defer conn.Close()

			store, err := a.openStore()
			if err != nil {
				return err
			}
			seen, err := cache.Open(ctx, store, a.logger)
			if err != nil {
				if c, ok := store.(io.Closer); ok {
					c.Close()
				}
				return fmt.Errorf("open cache: %w", err)
			}
			defer seen.Close()

			client := feed.NewClient(a.cfg.Feed.URL, a.cfg.Feed.Token, a.cfg.Feed.Timeout, a.logger)
			p := poller.New(poller.Config{
				Interval:          a.cfg.Feed.Interval,
				Limit:             a.cfg.Feed.Limit,
				MaxLookupFailures: a.cfg.Feed.MaxLookupFailures,
			}, client, client, seen, conn, a.cfg.Composer(), a.logger)

			a.logger.Info().
				Str("feed", a.cfg.Feed.URL).
				Dur("interval", a.cfg.Feed.Interval).
				Msg("watching feed")

			err = p.Run(ctx)
			if errors.Is(err, context.Canceled) {
				a.logger.Info().Msg("received signal, stopping...")
				return nil
			}
			return err
		},
	}
	cmd.Flags().String("feed-url", "", "base URL of the content feed")
	cmd.Flags().Duration("interval", 0, "poll interval")
	cmd.Flags().Int("max-lookup-failures", 0, "mark an item unresolved after this many failed author lookups (0 retries forever)")
	mustBind(a, cmd, "feed-url", "feed.url")
	mustBind(a, cmd, "interval", "feed.interval")
	mustBind(a, cmd, "max-lookup-failures", "feed.max_lookup_failures")
	return cmd
}

func mustBind(a *app, cmd *cobra.Command, flag, key string) {
	if err := a.v.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
		panic(fmt.Sprintf("binding flag %s: %v", flag, err))
	}
}

func (a *app) textCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "text NAME BODY",
		Short: "Print a single message",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext(cmd.Context())
			defer stop()

			conn, err := a.connect()
			if err != nil {
				return err
			}
			defer conn.Close()

			job := a.cfg.Composer().Message(args[0], args[1])
			if err := conn.Print(ctx, job); err != nil {
				return err
			}
			a.logger.Info().Str("name", args[0]).Msg("message printed")
			return nil
		},
	}
}

func (a *app) imageCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "image URL",
		Short: "Download, halftone and print an image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext(cmd.Context())
			defer stop()

			conn, err := a.connect()
			if err != nil {
				return err
			}
			defer conn.Close()

			stager, err := picture.NewStager(a.cfg.Scratch.Dir)
			if err != nil {
				return err
			}
			defer stager.Close()

			pipeline := &picture.Pipeline{
				Fetcher: picture.NewFetcher(a.cfg.Feed.Timeout, a.logger),
				Stager:  stager,
				Width:   a.cfg.Printer.Width,
				Logger:  a.logger,
			}
			raster, err := pipeline.Raster(ctx, args[0])
			if err != nil {
				return err
			}

			if err := conn.Print(ctx, a.cfg.Composer().Picture(raster)); err != nil {
				return err
			}
			a.logger.Info().
				Str("url", args[0]).
				Int("width", raster.Bounds().Dx()).
				Int("height", raster.Bounds().Dy()).
				Msg("image printed")
			return nil
		},
	}
}

func (a *app) usbCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "usb",
		Short: "List USB printer-class devices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			printers := adapter.ListPrinters(a.logger)
			if len(printers) == 0 {
				return adapter.ErrNoPrinter
			}
			out := cmd.OutOrStdout()
			for _, p := range printers {
				fmt.Fprintf(out, "%04x:%04x\t%s\t%s\t%s\n", p.VendorID, p.ProductID, p.Manufacturer, p.Product, p.Serial)
			}
			return nil
		},
	}
}

func (a *app) relayCommand() *cobra.Command {
	var listen string
	cmd := &cobra.Command{
		Use:   "relay",
		Short: "Forward raw ESC/POS jobs from a TCP port to the printer",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext(cmd.Context())
			defer stop()

			conn, err := a.connect()
			if err != nil {
				return err
			}
			defer conn.Close()

			srv := relay.New(conn, listen, a.logger)
			if err := srv.Serve(ctx); err != nil {
				return err
			}
			a.logger.Info().Msg("relay stopped")
			return nil
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "localhost:9100", "address to accept print jobs on")
	return cmd
}
