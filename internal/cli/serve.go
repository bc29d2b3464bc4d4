package cli

import (
	"fmt"
	"net"
	"strconv"

	"github.com/spf13/cobra"

	"ShapeBoard/internal/config"
	shapenet "ShapeBoard/internal/net"
	"ShapeBoard/internal/server"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var (
		addr      string
		storage   string
		advertise bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the drawing API server",
		Long: `Run the drawing API server.

Drawings and accounts are kept in memory, Redis or MongoDB depending on
server.storage. With --advertise the server announces itself over mDNS so
desktop clients on the same network find it without configuration.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := opts.cfg
			if cmd.Flags().Changed("addr") {
				cfg.Server.Addr = addr
			}
			if cmd.Flags().Changed("storage") {
				cfg.Server.Storage = storage
			}
			if cmd.Flags().Changed("advertise") {
				cfg.Server.Advertise = advertise
			}
			return runServe(cmd, cfg)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	cmd.Flags().StringVar(&storage, "storage", "", "storage backend: memory, redis or mongo")
	cmd.Flags().BoolVar(&advertise, "advertise", false, "announce the server over mDNS")
	return cmd
}

func runServe(cmd *cobra.Command, cfg config.Config) error {
	ctx := cmd.Context()
	logger := loggerFromContext(ctx)

	if err := cfg.ValidateServer(); err != nil {
		return err
	}

	repo, err := server.OpenRepository(ctx, cfg.Server)
	if err != nil {
		return err
	}
	defer func() {
		if err := repo.Close(); err != nil {
			logger.Warn("close storage", "err", err)
		}
	}()

	srv, err := server.New(cfg.Server, repo, logger)
	if err != nil {
		return err
	}

	ln, err := net.Listen("tcp", cfg.Server.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.Server.Addr, err)
	}
	port := ln.Addr().(*net.TCPAddr).Port

	out := cmd.OutOrStdout()
	printSuccess(out, "%s", styleTitle.Render("Drawing server running"))
	printKeyValue(out, "storage", cfg.Server.Storage)
	printKeyValue(out, "local", "http://localhost:"+strconv.Itoa(port))
	printKeyValue(out, "network", "http://"+net.JoinHostPort(shapenet.OutgoingIP(), strconv.Itoa(port)))

	if cfg.Server.Advertise {
		announcer, err := shapenet.Advertise(port)
		if err != nil {
			// the API still works without discovery
			printWarning(out, "mDNS advertisement failed: %v", err)
		} else {
			defer announcer.Shutdown()
			printInfo(out, "advertising %s on port %d", shapenet.ServiceType, port)
		}
	}

	return srv.Serve(ctx, ln)
}
