/*
Copyright 2026 The Vitess Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package cli

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/liqd-js/mongodb-query-optimizer/go/flagutil"
	"github.com/liqd-js/mongodb-query-optimizer/go/log"
	"github.com/liqd-js/mongodb-query-optimizer/go/pipeline/server"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand(v *viper.Viper) *cobra.Command {
	var (
		addr         string
		cacheTTL     time.Duration
		cacheCleanup time.Duration
		maxBodyBytes int64
		accessLog    bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serves the optimizer over HTTP.",
		Long: "Serves POST /optimize and POST /explain, with metrics on GET /metrics.\n" +
			"The server stops on SIGINT or SIGTERM after in-flight requests finish.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			opts := server.Options{
				MaxBodyBytes: v.GetInt64(keyMaxBodyBytes),
				CacheTTL:     v.GetDuration(keyCacheTTL),
				CacheCleanup: v.GetDuration(keyCacheCleanup),
			}
			if accessLog {
				opts.AccessLog = cmd.ErrOrStderr()
			}
			ln, err := net.Listen("tcp", v.GetString(keyServerAddr))
			if err != nil {
				return err
			}
			return serve(ctx, ln, server.New(opts))
		},
	}

	fs := cmd.Flags()
	flagutil.SetFlagStringVar(fs, &addr, "addr", ":8080", "Address to listen on.")
	flagutil.SetFlagDurationVar(fs, &cacheTTL, "cache-ttl", time.Minute, "How long optimize responses are cached. Zero disables caching.")
	flagutil.SetFlagDurationVar(fs, &cacheCleanup, "cache-cleanup", 5*time.Minute, "Interval between purges of expired cache entries.")
	flagutil.SetFlagInt64Var(fs, &maxBodyBytes, "max-body-bytes", server.DefaultMaxBodyBytes, "Largest accepted request body.")
	flagutil.SetFlagBoolVar(fs, &accessLog, "access-log", true, "Write an access log line per request to stderr.")
	bindFlag(v, keyServerAddr, fs.Lookup("addr"))
	bindFlag(v, keyCacheTTL, fs.Lookup("cache-ttl"))
	bindFlag(v, keyCacheCleanup, fs.Lookup("cache-cleanup"))
	bindFlag(v, keyMaxBodyBytes, fs.Lookup("max-body-bytes"))
	return cmd
}

// serve answers requests on ln until ctx is done, then shuts down
// gracefully.
func serve(ctx context.Context, ln net.Listener, srv *server.Server) error {
	defer srv.Stop()

	hs := &http.Server{
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	log.InfoS("serving pipeline optimizer", "addr", ln.Addr().String())

	errc := make(chan error, 1)
	go func() {
		errc <- hs.Serve(ln)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	log.InfoS("shutting down", "timeout", shutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := hs.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
