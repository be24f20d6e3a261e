package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/Jakar510/jakardb/internal/core"
	"github.com/spf13/cobra"
)

var (
	dumpPretty bool

	dumpCmd = &cobra.Command{
		Use:   "dump <table>",
		Short: "Print every row of a table as JSON",
		Long:  `Read every row of the named table straight from the database and print it as a JSON array, ordered by key.`,
		Args:  cobra.ExactArgs(1),
		RunE:  runDump,
	}

	statsCmd = &cobra.Command{
		Use:   "stats",
		Short: "Load every table once and print cache statistics",
		Args:  cobra.NoArgs,
		RunE:  runStats,
	}
)

func init() {
	dumpCmd.Flags().BoolVar(&dumpPretty, "pretty", false, "indent the JSON output")
}

func runDump(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	pool, err := openPool(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer pool.Close()

	service, err := newService(pool, cfg)
	if err != nil {
		return err
	}

	h, err := service.Table(args[0])
	if err != nil {
		return fmt.Errorf("%w (known: %s)", err, tableKeys(service.Tables()))
	}

	rows, err := h.Rows(ctx)
	if err != nil {
		return err
	}
	return writeJSON(cmd.OutOrStdout(), rows, dumpPretty)
}

func runStats(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	pool, err := openPool(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer pool.Close()

	service, err := newService(pool, cfg)
	if err != nil {
		return err
	}
	defer service.Close(ctx)

	if err := service.Load(ctx); err != nil {
		return err
	}
	return writeJSON(cmd.OutOrStdout(), service.Stats(), true)
}

func writeJSON(w io.Writer, v any, pretty bool) error {
	enc := json.NewEncoder(w)
	if pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}

func tableKeys(infos []core.TableInfo) string {
	keys := make([]string, len(infos))
	for i, info := range infos {
		keys[i] = info.Key
	}
	return strings.Join(keys, ", ")
}
