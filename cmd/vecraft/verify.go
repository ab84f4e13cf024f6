package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hupe1980/vecraft/wal"
)

// errCorrupt is returned by verify after it reported a corrupt entry.
var errCorrupt = errors.New("log is corrupt")

func newVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify <wal-path>",
		Short: "Check a durability log without opening the database",
		Long: `Read every entry of a durability log and validate structure, checksums
and sequence order. The log is not modified. A torn final line is reported
but is not an error; the server truncates it on startup.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			var (
				entries int
				lastSeq uint64
			)
			for e, err := range wal.Scan(args[0]) {
				if wal.IsTorn(err) {
					fmt.Fprintf(out, "warning: %v\n", err)
					break
				}
				if errors.Is(err, wal.ErrCorruptEntry) {
					fmt.Fprintf(out, "corrupt: %v\n", err)
					fmt.Fprintf(out, "%d valid entries before the corruption\n", entries)
					return errCorrupt
				}
				if err != nil {
					return err
				}
				entries++
				lastSeq = e.Seq
			}

			fmt.Fprintf(out, "ok: %d entries, last seq %d\n", entries, lastSeq)
			return nil
		},
	}
}
