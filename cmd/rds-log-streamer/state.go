package main

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/SteelMorgan/rds-log-streamer/internal/offset"
)

func newStateCommand(flags *cliFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "state",
		Short: "Show the persisted per-file progress",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.loadConfig(cmd)
			if err != nil {
				return err
			}
			progress, err := loadProgress(cmd, cfg.StateBackend, cfg.StateFile)
			if err != nil {
				return err
			}
			return printProgress(cmd.OutOrStdout(), progress)
		},
	}
}

// loadProgress reads the JSON state file without taking the lock so it can be
// inspected while a streamer is running. bbolt needs the database lock.
func loadProgress(cmd *cobra.Command, backend, path string) (offset.Progress, error) {
	if backend == "" || backend == offset.BackendJSON {
		return offset.ReadStateFile(path), nil
	}

	store, err := offset.Open(backend, path)
	if err != nil {
		return nil, err
	}
	defer store.Close()
	return store.Load(cmd.Context())
}

func printProgress(out io.Writer, progress offset.Progress) error {
	if progress.Len() == 0 {
		_, err := fmt.Fprintln(out, "No log file progress recorded")
		return err
	}

	headers := []string{"Instance", "File", "Marker", "Pending", "Last Read (UTC)"}
	aligns := []columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignLeft}
	_, err := fmt.Fprintln(out, renderTable(headers, progressRows(progress), aligns))
	return err
}

func progressRows(progress offset.Progress) [][]string {
	instances := make([]string, 0, len(progress))
	for id := range progress {
		instances = append(instances, id)
	}
	sort.Strings(instances)

	var rows [][]string
	for _, id := range instances {
		files := make([]string, 0, len(progress[id]))
		for name := range progress[id] {
			files = append(files, name)
		}
		sort.Strings(files)

		for _, name := range files {
			fp := progress[id][name]
			rows = append(rows, []string{
				id,
				name,
				fp.Marker,
				strconv.FormatBool(fp.PendingRead),
				formatReadTime(fp.LastReadTimeMs),
			})
		}
	}
	return rows
}

func formatReadTime(ms int64) string {
	if ms == 0 {
		return "never"
	}
	return time.UnixMilli(ms).UTC().Format("2006-01-02 15:04:05")
}
