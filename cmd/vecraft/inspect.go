package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/hupe1980/vecraft/model"
	"github.com/hupe1980/vecraft/wal"
)

type inspectFlags struct {
	collection string
	limit      int
	asJSON     bool
}

func newInspectCmd() *cobra.Command {
	var f inspectFlags

	cmd := &cobra.Command{
		Use:   "inspect <wal-path>",
		Short: "Print the entries of a durability log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return inspect(cmd.OutOrStdout(), args[0], f)
		},
	}

	cmd.Flags().StringVar(&f.collection, "collection", "", "only show entries for this collection")
	cmd.Flags().IntVarP(&f.limit, "limit", "n", 0, "stop after this many entries (0 = all)")
	cmd.Flags().BoolVar(&f.asJSON, "json", false, "print one JSON object per entry")
	return cmd
}

type entryView struct {
	Seq        uint64    `json:"seq"`
	Time       time.Time `json:"time"`
	Op         string    `json:"op"`
	Collection string    `json:"collection"`
	Detail     string    `json:"detail"`
}

func inspect(w io.Writer, path string, f inspectFlags) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	enc := json.NewEncoder(w)
	if !f.asJSON {
		fmt.Fprintln(tw, "SEQ\tTIME\tOP\tCOLLECTION\tDETAIL")
	}

	shown := 0
	for e, err := range wal.Scan(path) {
		if err != nil {
			if !f.asJSON {
				_ = tw.Flush()
			}
			return err
		}
		if f.collection != "" && e.Op.Collection() != f.collection {
			continue
		}

		v := entryView{
			Seq:        e.Seq,
			Time:       e.Timestamp.UTC(),
			Op:         string(e.Op.Kind()),
			Collection: e.Op.Collection(),
			Detail:     detail(e.Op),
		}
		if f.asJSON {
			if err := enc.Encode(v); err != nil {
				return err
			}
		} else {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", v.Seq, v.Time.Format(time.RFC3339Nano), v.Op, v.Collection, v.Detail)
		}

		shown++
		if f.limit > 0 && shown >= f.limit {
			break
		}
	}

	if !f.asJSON {
		return tw.Flush()
	}
	return nil
}

func detail(op model.Operation) string {
	switch op := op.(type) {
	case model.CreateCollection:
		return fmt.Sprintf("dimension=%d metric=%s", op.Dimension, op.Metric)
	case model.Upsert:
		return fmt.Sprintf("id=%s dims=%d metadata_keys=%d", op.Record.ID, len(op.Record.Vector), len(op.Record.Metadata))
	case model.Delete:
		return "id=" + op.ID
	default:
		return ""
	}
}
