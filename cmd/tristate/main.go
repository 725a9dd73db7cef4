// Command tristate evaluates predicates against JSON records, either from a
// file or from a local record store.
//
// Logging:
//   - The base logger is created here from the --log-level and --log-json flags
//   - Components receive it by injection and scope it themselves
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/inngest/tristate"
	"github.com/inngest/tristate/internal/logging"
	"github.com/inngest/tristate/internal/recordstore"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		logger  *slog.Logger
		metrics *tristate.Metrics
	)

	rootCmd := &cobra.Command{
		Use:          "tristate",
		Short:        "Evaluate tri-state predicates against records",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			levelFlag, _ := cmd.Flags().GetString("log-level")
			jsonFlag, _ := cmd.Flags().GetBool("log-json")
			level, err := logging.ParseLevel(levelFlag)
			if err != nil {
				return err
			}
			logger = logging.New(cmd.ErrOrStderr(), level, jsonFlag)

			reg := prometheus.NewRegistry()
			metrics = tristate.NewMetrics(reg)
			if addr, _ := cmd.Flags().GetString("metrics-addr"); addr != "" {
				go func() {
					logger.Info("metrics server listening", "addr", addr)
					if err := http.ListenAndServe(addr, promhttp.HandlerFor(reg, promhttp.HandlerOpts{})); err != nil {
						logger.Error("metrics server error", "error", err)
					}
				}()
			}
			return nil
		},
	}

	rootCmd.PersistentFlags().String("config", "", "path to a YAML config file")
	rootCmd.PersistentFlags().String("log-level", "info", "log level: debug, info, warn, or error")
	rootCmd.PersistentFlags().Bool("log-json", false, "log as JSON")
	rootCmd.PersistentFlags().String("metrics-addr", "", "serve Prometheus metrics on this address (eg. localhost:9090)")

	evalCmd := &cobra.Command{
		Use:   "eval",
		Short: "Evaluate a query against a JSON records file",
		RunE: func(cmd *cobra.Command, args []string) error {
			recordsPath, _ := cmd.Flags().GetString("records")
			docs, err := readDocuments(recordsPath)
			if err != nil {
				return err
			}
			return runQuery(cmd, logger, metrics, docs)
		},
	}
	evalCmd.Flags().String("records", "", "JSON file holding an array of records")
	_ = evalCmd.MarkFlagRequired("records")

	loadCmd := &cobra.Command{
		Use:   "load",
		Short: "Load a JSON records file into a record store",
		RunE: func(cmd *cobra.Command, args []string) error {
			recordsPath, _ := cmd.Flags().GetString("records")
			dbPath, _ := cmd.Flags().GetString("db")

			docs, err := readDocuments(recordsPath)
			if err != nil {
				return err
			}
			store, err := recordstore.Open(dbPath, recordstore.Options{Logger: logger})
			if err != nil {
				return err
			}
			defer store.Close()

			batch := make(map[string]map[string]any, len(docs))
			for _, d := range docs {
				batch[d.id] = d.doc
			}
			if err := store.PutBatch(batch); err != nil {
				return err
			}
			logger.Info("records loaded", "records", len(batch), "db", dbPath)
			return nil
		},
	}
	loadCmd.Flags().String("records", "", "JSON file holding an array of records")
	loadCmd.Flags().String("db", "", "record store directory")
	_ = loadCmd.MarkFlagRequired("records")
	_ = loadCmd.MarkFlagRequired("db")

	scanCmd := &cobra.Command{
		Use:   "scan",
		Short: "Evaluate a query against every record in a record store",
		RunE: func(cmd *cobra.Command, args []string) error {
			dbPath, _ := cmd.Flags().GetString("db")
			store, err := recordstore.Open(dbPath, recordstore.Options{Logger: logger})
			if err != nil {
				return err
			}
			defer store.Close()

			var docs []document
			err = store.Scan(cmd.Context(), func(id string, doc map[string]any) error {
				docs = append(docs, document{id: id, doc: doc})
				return nil
			})
			if err != nil {
				return err
			}
			return runQuery(cmd, logger, metrics, docs)
		},
	}
	scanCmd.Flags().String("db", "", "record store directory")
	_ = scanCmd.MarkFlagRequired("db")

	for _, c := range []*cobra.Command{evalCmd, scanCmd} {
		c.Flags().String("query", "", "predicate to evaluate")
		c.Flags().StringArray("field", nil, "field binding NAME=PATH, or NAME[]=PATH for grouped values (repeatable)")
		c.Flags().StringSlice("incomplete", nil, "fields to treat as incomplete")
		c.Flags().String("coercion", "", "root policy: strict or lenient")
		c.Flags().Bool("all", false, "print records that did not match")
		_ = c.MarkFlagRequired("query")
	}

	rootCmd.AddCommand(evalCmd, loadCmd, scanCmd)
	return rootCmd
}

type document struct {
	id  string
	doc map[string]any
}

func readDocuments(path string) ([]document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	parsed, err := tristate.ParseDocument(data)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	list, ok := parsed.([]any)
	if !ok {
		return nil, fmt.Errorf("%s: expected a JSON array of records", path)
	}

	docs := make([]document, 0, len(list))
	for i, item := range list {
		doc, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%s: record %d is not an object", path, i)
		}
		id := strconv.Itoa(i)
		if v, ok := doc["id"]; ok {
			id = fmt.Sprintf("%v", v)
		}
		docs = append(docs, document{id: id, doc: doc})
	}
	return docs, nil
}

// loadConfig reads --config and applies the flag overrides.
func loadConfig(cmd *cobra.Command) (tristate.Config, error) {
	cfg := tristate.DefaultConfig()
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		var err error
		if cfg, err = tristate.LoadConfig(path); err != nil {
			return cfg, err
		}
	}

	fields, _ := cmd.Flags().GetStringArray("field")
	for _, f := range fields {
		b, err := tristate.ParseFieldBinding(f)
		if err != nil {
			return cfg, err
		}
		cfg.Fields = append(cfg.Fields, b)
	}
	if incomplete, _ := cmd.Flags().GetStringSlice("incomplete"); len(incomplete) > 0 {
		cfg.IncompleteFields = append(cfg.IncompleteFields, incomplete...)
	}
	if coercion, _ := cmd.Flags().GetString("coercion"); coercion != "" {
		cfg.Coercion = coercion
	}
	return cfg, cfg.Validate()
}

func runQuery(cmd *cobra.Command, logger *slog.Logger, metrics *tristate.Metrics, docs []document) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	engine, err := tristate.NewEngine(cfg, tristate.EngineOptions{
		Registry: tristate.NewRegistry(),
		Metrics:  metrics,
		Logger:   logger,
	})
	if err != nil {
		return err
	}
	defer engine.Close()

	records := make([]tristate.Record, len(docs))
	for i, d := range docs {
		records[i] = tristate.Record{ID: d.id, Context: engine.Binder().Bind(d.doc)}
	}

	query, _ := cmd.Flags().GetString("query")
	all, _ := cmd.Flags().GetBool("all")
	results, stats, err := engine.Scan(cmd.Context(), tristate.Expression(query), records)
	if err != nil {
		return err
	}

	printResults(cmd.OutOrStdout(), results, all)
	logger.Info("query finished",
		"scan_id", stats.ID.String(),
		"records", stats.Records,
		"matched", stats.Matched,
		"provisional", stats.Provisional,
		"failed", stats.Failed,
	)
	return nil
}

func printResults(w io.Writer, results []tristate.RecordResult, all bool) {
	for _, r := range results {
		switch {
		case r.Err != nil:
			if all {
				fmt.Fprintf(w, "%s\terror\t%v\n", r.ID, r.Err)
			}
		case r.Result.Matched:
			fmt.Fprintf(w, "%s\tmatched\tprovisional=%t\n", r.ID, r.Result.Provisional)
		case all:
			fmt.Fprintf(w, "%s\tnot_matched\n", r.ID)
		}
	}
}
