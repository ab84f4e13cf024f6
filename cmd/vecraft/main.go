// Command vecraft runs the vector database server and inspects its
// durability log.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "vecraft",
		Short: "vecraft - single-node vector similarity search",
		Long: `vecraft stores named collections of embeddings, serves exact
nearest-neighbor queries over gRPC and protects every mutation with an
append-only durability log.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newServeCmd())
	root.AddCommand(newVerifyCmd())
	root.AddCommand(newInspectCmd())
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
