package app

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/utkarshgautam22/DiskForge/internal/api"
	"github.com/utkarshgautam22/DiskForge/internal/service"
)

type serveOptions struct {
	host string
	port int
}

func NewServeCommand(o *Options) *cobra.Command {
	s := &serveOptions{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return s.runFunc(o)(ctx)
		},
	}
	cmd.Flags().StringVar(&s.host, "host", "", "listen host (default from config)")
	cmd.Flags().IntVar(&s.port, "port", 0, "listen port (default from config)")
	return cmd
}

func (s *serveOptions) runFunc(o *Options) service.RunFunc {
	return func(ctx context.Context) error {
		rt, err := o.Runtime()
		if err != nil {
			return err
		}
		if s.host != "" {
			rt.Config.Server.Host = s.host
		}
		if s.port != 0 {
			rt.Config.Server.Port = s.port
		}
		return serve(ctx, rt)
	}
}

func serve(ctx context.Context, rt *Runtime) error {
	if rt.Config.Server.Port <= 0 || rt.Config.Server.Port > 65535 {
		return fmt.Errorf("invalid port %d", rt.Config.Server.Port)
	}
	go func() {
		if err := watchDevices(ctx, rt, nil); err != nil {
			log.WithError(err).Warn("Device watch stopped, protected set will no longer refresh")
		}
	}()

	srv := api.NewServer(rt.Host, rt.Classifier, rt.Engine, rt.Registry)
	addr := rt.Config.Addr()
	if host, _, err := net.SplitHostPort(addr); err == nil && host != "127.0.0.1" && host != "localhost" && host != "::1" {
		log.WithField("addr", addr).Warn("API is reachable from other machines, anyone who can connect can erase disks")
	}
	return api.ListenAndServe(ctx, addr, srv.Handler(rt.Config.Server.AllowedOrigins))
}
