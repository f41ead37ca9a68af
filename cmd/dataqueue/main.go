package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/iamNilotpal/dataqueue/config"
	"github.com/iamNilotpal/dataqueue/internal/adapters/codec"
	"github.com/iamNilotpal/dataqueue/internal/core/services/queue"
	"github.com/iamNilotpal/dataqueue/internal/core/services/store"
	"github.com/iamNilotpal/dataqueue/pkg/errors"
	"github.com/iamNilotpal/dataqueue/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

// Flags shared by every command.
type globalFlags struct {
	configPath string
	logLevel   string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		if errors.IsValidationError(err) {
			verr := errors.AsValidationError(err)
			fmt.Fprintf(os.Stderr, "invalid %s (%v): %v\n", verr.Field, verr.Value, verr.Err)
		} else {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:           "dataqueue",
		Short:         "Inspect and run a disk-backed queue",
		Long:          "dataqueue manages a local disk-backed single-consumer queue: its marker, its records and its consumer.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&flags.configPath, "config", os.Getenv("DATAQUEUE_CONFIG"), "Path to the YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "Log level: debug|info|warn|error (overrides the config file)")

	rootCmd.AddCommand(newMarkerCmd(flags), newStatsCmd(flags), newOfferCmd(flags), newConsumeCmd(flags))
	return rootCmd
}

func newMarkerCmd(flags *globalFlags) *cobra.Command {
	markerCmd := &cobra.Command{Use: "marker", Short: "Marker commands"}

	markerCmd.AddCommand(&cobra.Command{
		Use:   "get",
		Short: "Print the number of consumed records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(flags, func(st *store.Store[json.RawMessage]) error {
				fmt.Fprintln(cmd.OutOrStdout(), st.Marker())
				return nil
			})
		},
	})

	markerCmd.AddCommand(&cobra.Command{
		Use:   "set <value>",
		Short: "Override the marker (unsafe, for manual recovery)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid marker %q: %w", args[0], err)
			}

			return withStore(flags, func(st *store.Store[json.RawMessage]) error {
				previous := st.Marker()
				if err := st.SetMarker(value); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "marker %d -> %d (write pointer %d)\n", previous, value, st.WritePointer())
				return nil
			})
		},
	})

	return markerCmd
}

func newStatsCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print marker, write pointer and segments",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(flags, func(st *store.Store[json.RawMessage]) error {
				marker, writePointer := st.Marker(), st.WritePointer()
				unread := uint64(0)
				if writePointer > marker {
					unread = writePointer - marker
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "marker:        %d\n", marker)
				fmt.Fprintf(out, "write pointer: %d\n", writePointer)
				fmt.Fprintf(out, "unread:        %d\n", unread)
				fmt.Fprintln(out, "segments:")
				for _, seg := range st.Segments() {
					flagsText := ""
					if seg.Active {
						flagsText += " active"
					}
					if seg.Archived {
						flagsText += " archived"
					}
					fmt.Fprintf(out, "  %s base=%d records=%d size=%d%s\n", seg.Path, seg.BaseOffset, seg.Records, seg.Size, flagsText)
				}
				return nil
			})
		},
	}
}

func newOfferCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "offer <json>...",
		Short: "Append JSON records without consuming them",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			records := make([]json.RawMessage, 0, len(args))
			for _, arg := range args {
				if !json.Valid([]byte(arg)) {
					return fmt.Errorf("record %q is not valid JSON", arg)
				}
				records = append(records, json.RawMessage(arg))
			}

			return withStore(flags, func(st *store.Store[json.RawMessage]) error {
				for _, record := range records {
					if err := st.Append(record); err != nil {
						return err
					}
				}
				fmt.Fprintf(cmd.OutOrStdout(), "appended %d records, write pointer %d\n", len(records), st.WritePointer())
				return nil
			})
		},
	}
}

func newConsumeCmd(flags *globalFlags) *cobra.Command {
	consumeCmd := &cobra.Command{
		Use:   "consume",
		Short: "Run the worker and print every record as a JSON line",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			metricsAddr, _ := cmd.Flags().GetString("metrics-addr")

			cfg, log, err := loadConfig(flags)
			if err != nil {
				return err
			}
			defer log.Sync()

			if metricsAddr == "" {
				metricsAddr = cfg.MetricsAddr
			}

			opts, err := cfg.QueueOptions()
			if err != nil {
				return err
			}

			registry := prometheus.NewRegistry()
			registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
			opts.Logger = log
			opts.Registerer = registry

			out := cmd.OutOrStdout()
			listener := printListener(func(batch []json.RawMessage) error {
				for _, record := range batch {
					if _, err := fmt.Fprintf(out, "%s\n", record); err != nil {
						return err
					}
				}
				return nil
			})

			q, err := queue.New[json.RawMessage](listener, opts)
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			g, gctx := errgroup.WithContext(ctx)

			var server *fasthttp.Server
			if metricsAddr != "" {
				server = newMetricsServer(registry)
				g.Go(func() error {
					log.Infow("serving metrics", "addr", metricsAddr)
					if err := server.ListenAndServe(metricsAddr); err != nil {
						return fmt.Errorf("metrics server: %w", err)
					}
					return nil
				})
			}

			g.Go(func() error {
				<-gctx.Done()
				log.Infow("shutting down", "marker", q.Marker(), "writePointer", q.WritePointer())

				if server != nil {
					if err := server.Shutdown(); err != nil {
						log.Warnw("metrics server shutdown failed", "error", err)
					}
				}

				closeCtx, closeCancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer closeCancel()
				return q.Close(closeCtx)
			})

			log.Infow("consuming", "path", opts.Store.Path, "maxCount", opts.Scheduler.MaxCount)
			return g.Wait()
		},
	}

	consumeCmd.Flags().String("metrics-addr", "", "Serve Prometheus metrics at this address (overrides metrics_addr)")
	return consumeCmd
}

type printListener func(batch []json.RawMessage) error

func (f printListener) Deliver(batch []json.RawMessage) error {
	return f(batch)
}

func newMetricsServer(registry *prometheus.Registry) *fasthttp.Server {
	metricsHandler := fasthttpadaptor.NewFastHTTPHandler(promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	return &fasthttp.Server{
		Name: "dataqueue",
		Handler: func(ctx *fasthttp.RequestCtx) {
			switch string(ctx.Path()) {
			case "/metrics":
				metricsHandler(ctx)
			case "/live":
				ctx.SetContentType("application/json")
				ctx.SetBodyString(`{"status":"up"}`)
			default:
				ctx.Error("not found", fasthttp.StatusNotFound)
			}
		},
	}
}

// Opens the configured store without a worker, runs fn and closes it.
func withStore(flags *globalFlags, fn func(st *store.Store[json.RawMessage]) error) error {
	cfg, log, err := loadConfig(flags)
	if err != nil {
		return err
	}
	defer log.Sync()

	opts, err := cfg.QueueOptions()
	if err != nil {
		return err
	}

	c, err := codec.New[json.RawMessage](codec.FormatJSON)
	if err != nil {
		return err
	}

	st, err := store.Open(opts.Store, c, log, nil)
	if err != nil {
		return err
	}

	fnErr := fn(st)
	if err := st.Close(); err != nil && fnErr == nil {
		return err
	}
	return fnErr
}

// Reads the config file, if any, and builds the logger at the requested level.
func loadConfig(flags *globalFlags) (*config.Config, *zap.SugaredLogger, error) {
	cfg := config.DefaultConfig()
	if flags.configPath != "" {
		loaded, err := config.LoadConfig(flags.configPath)
		if err != nil {
			return nil, nil, err
		}
		cfg = loaded
	}

	if flags.logLevel != "" {
		cfg.LogLevel = flags.logLevel
	}

	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
	}

	return cfg, logger.NewWithLevel(queue.DefaultServiceName, level), nil
}
