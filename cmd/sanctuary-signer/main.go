// Command sanctuary-signer is the owner-side tool: it holds the ML-DSA-44
// key bound at vault setup, computes operation hashes and signs them.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "sanctuary-signer",
		Short:         "Owner key management and signing for sanctuary vaults",
		SilenceUsage: true,
	}
	cmd.AddCommand(
		NewKeygenCmd(),
		NewSignCmd(),
		NewVerifyCmd(),
		NewOperationHashCmd(),
		NewGenTestDataCmd(),
		NewTokenCmd(),
	)
	return cmd
}
