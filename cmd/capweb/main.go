// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

// Command capweb is a web application that logs users in with an OIDC
// provider's authorization code flow and logs them out of both the
// application and the provider.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hashicorp/capweb/oidc"
	"github.com/hashicorp/capweb/redisstore"
	"github.com/hashicorp/capweb/session"
	"github.com/hashicorp/capweb/web"
	"github.com/hashicorp/go-hclog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"
)

const (
	cleanupInterval = time.Minute
	shutdownTimeout = 10 * time.Second
)

func main() {
	addr := flag.String("addr", "", "listen address (overrides "+envAddr+")")
	flag.Parse()

	c, err := envConfig(os.Getenv)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if *addr != "" {
		c.addr = *addr
	}
	logger := hclog.New(&hclog.LoggerOptions{
		Name:       "capweb",
		Level:      c.logLevel,
		JSONFormat: c.logJSON,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, c, logger); err != nil {
		logger.Error("exiting", "error", err)
		os.Exit(1)
	}
}

// stores are the session and pending request stores, either shared (redis)
// or local to this process.
type stores struct {
	sessions session.Store
	requests oidc.RequestStore
	close    func() error
}

func newStores(ctx context.Context, c *config, logger hclog.Logger) (*stores, error) {
	if c.redisURL != "" {
		client, err := redisstore.NewClient(ctx, c.redisURL)
		if err != nil {
			return nil, err
		}
		sessions, err := redisstore.NewSessions(client, redisstore.WithLogger(logger.Named("sessions")))
		if err != nil {
			return nil, err
		}
		requests, err := redisstore.NewRequests(client, redisstore.WithLogger(logger.Named("requests")))
		if err != nil {
			return nil, err
		}
		logger.Info("using redis stores")
		return &stores{sessions: sessions, requests: requests, close: client.Close}, nil
	}

	sessions := session.NewMemoryStore(session.WithLogger(logger.Named("sessions")))
	requests := oidc.NewMemoryRequestStore(oidc.WithLogger(logger.Named("requests")))
	sessions.StartCleanup(ctx, cleanupInterval)
	requests.StartCleanup(ctx, cleanupInterval)
	logger.Info("using in-memory stores")
	return &stores{sessions: sessions, requests: requests, close: func() error { return nil }}, nil
}

func run(ctx context.Context, c *config, logger hclog.Logger) error {
	const op = "run"
	g, ctx := errgroup.WithContext(ctx)

	caPEM, err := c.readProviderCA()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	var cfgOpts []oidc.Option
	if caPEM != "" {
		cfgOpts = append(cfgOpts, oidc.WithProviderCA(caPEM))
	}
	pc, err := oidc.NewConfig(c.issuer, c.clientID, oidc.ClientSecret(c.clientSecret), c.redirectURL(web.DefaultProviderName), cfgOpts...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	st, err := newStores(ctx, c, logger)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		if err := st.close(); err != nil {
			logger.Warn("unable to close stores", "error", err)
		}
	}()

	p, err := oidc.NewProvider(pc, st.requests, oidc.WithLogger(logger.Named("oidc")))
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer p.Done()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	handler, err := web.NewRouter(web.RouterConfig{
		Provider: p,
		Sessions: st.sessions,
		BaseURL:  c.baseURL(),
		Home:     homeHandler(logger),
		Profile:  profileHandler(logger),
		Static:   staticHandler(),
		Gatherer: reg,
	}, web.WithLogger(logger.Named("web")), web.WithMetrics(web.NewMetrics(reg)))
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	srv := &http.Server{
		Addr:              c.addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	g.Go(func() error {
		logger.Info("listening", "addr", c.addr, "issuer", c.issuer)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		logger.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	if err := g.Wait(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
