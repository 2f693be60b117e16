package main

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/outofforest/hostlink/hostsim"
	"github.com/outofforest/hostlink/netwindow"
	"github.com/outofforest/hostlink/wsbridge"
	"github.com/outofforest/logger"
	"github.com/outofforest/parallel"
	"github.com/outofforest/run"
)

type flags struct {
	WSAddress      string
	TCPAddress     string
	MetricsAddress string
	ConfigPath     string
	AllowedOrigins []string
}

func main() {
	var f flags
	pflag.StringVar(&f.WSAddress, "ws-address", ":8080", "address websocket bridge listens on")
	pflag.StringVar(&f.TCPAddress, "tcp-address", "", "address netwindow server listens on, disabled if empty")
	pflag.StringVar(&f.MetricsAddress, "metrics-address", "", "address metrics are served on, disabled if empty")
	pflag.StringVar(&f.ConfigPath, "config", "", "path to host configuration file")
	pflag.StringSliceVar(&f.AllowedOrigins, "allowed-origin", nil, "origin apps may connect from, may be repeated")
	pflag.Parse()

	run.New().Run(context.Background(), "hostsim", func(ctx context.Context) error {
		return runHost(ctx, f)
	})
}

func runHost(ctx context.Context, f flags) error {
	config := hostsim.DefaultConfig()
	if f.ConfigPath != "" {
		var err error
		config, err = hostsim.LoadConfig(f.ConfigPath)
		if err != nil {
			return err
		}
	}

	sessions := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "hostsim",
		Name:      "sessions",
		Help:      "Number of connected apps.",
	})
	registry := prometheus.NewRegistry()
	registry.MustRegister(sessions)

	serve := func(ctx context.Context, conn hostsim.Conn) error {
		sessions.Inc()
		defer sessions.Dec()

		host := hostsim.New(config, conn)
		logger.Get(ctx).Info("App connected", zap.Stringer("session", host.SessionID()))
		return host.Run(ctx)
	}

	return parallel.Run(ctx, func(ctx context.Context, spawn parallel.SpawnFn) error {
		spawn("websocket", parallel.Fail, func(ctx context.Context) error {
			return serveHTTP(ctx, f.WSAddress, wsbridge.NewHandler(ctx, f.AllowedOrigins,
				func(ctx context.Context, c *wsbridge.HostConn) error {
					return serve(ctx, c)
				}))
		})
		if f.TCPAddress != "" {
			spawn("netwindow", parallel.Fail, func(ctx context.Context) error {
				ls, err := net.Listen("tcp", f.TCPAddress)
				if err != nil {
					return errors.WithStack(err)
				}
				defer ls.Close()

				return netwindow.RunServer(ctx, ls, netwindow.ServerConfig{
					Origin: config.Origin,
				}, func(ctx context.Context, peer *netwindow.Peer) error {
					return serve(ctx, hostsim.WindowConn(peer, peer.Origin()))
				})
			})
		}
		if f.MetricsAddress != "" {
			spawn("metrics", parallel.Fail, func(ctx context.Context) error {
				return serveHTTP(ctx, f.MetricsAddress, promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
			})
		}
		return nil
	})
}

func serveHTTP(ctx context.Context, address string, handler http.Handler) error {
	server := &http.Server{
		Addr:              address,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return parallel.Run(ctx, func(ctx context.Context, spawn parallel.SpawnFn) error {
		spawn("server", parallel.Fail, func(ctx context.Context) error {
			logger.Get(ctx).Info("Listening", zap.String("address", address))
			err := server.ListenAndServe()
			if errors.Is(err, http.ErrServerClosed) {
				return ctx.Err()
			}
			return errors.WithStack(err)
		})
		spawn("shutdown", parallel.Fail, func(ctx context.Context) error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				return errors.WithStack(err)
			}
			return errors.WithStack(ctx.Err())
		})
		return nil
	})
}
