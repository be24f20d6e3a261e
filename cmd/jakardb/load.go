package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

var (
	loadReplace bool

	loadCmd = &cobra.Command{
		Use:   "load <table> <file>",
		Short: "Bulk load a JSON array of records into a table",
		Long: `Copy the records in file (a JSON array, "-" for stdin) into the named
table with a single COPY. With --replace, stored rows sharing a key with a
loaded record are deleted first in the same transaction.`,
		Args: cobra.ExactArgs(2),
		RunE: runLoad,
	}
)

func init() {
	loadCmd.Flags().BoolVar(&loadReplace, "replace", false, "replace rows whose key is already stored")
}

func runLoad(cmd *cobra.Command, args []string) error {
	body, err := readInput(cmd.InOrStdin(), args[1])
	if err != nil {
		return err
	}

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

	n, err := h.Import(ctx, body, loadReplace)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "loaded %d rows into %s\n", n, args[0])
	return nil
}

// readInput reads path, or stdin when path is "-".
func readInput(stdin io.Reader, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdin)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}
