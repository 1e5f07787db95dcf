package main

import (
	"fmt"

	"github.com/daniel-salmon/distlock/pkg/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const Version = "0.1.0"

// builds the command tree, every call returns fresh flags and config
func newRootCmd() *cobra.Command {
	v := viper.New()

	root := &cobra.Command{
		Use:     "distlock",
		Short:   "distributed lock manager",
		Version: Version,
		Long: fmt.Sprintf(`distlock (v%s)

A lock server handing out named leases with fencing tokens over gRPC,
plus a client for creating, acquiring and releasing them.`, Version),
		SilenceUsage: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			config.InitEnv(v)
		},
	}

	root.AddCommand(newServeCmd(v))
	root.AddCommand(newLockCmd(v))
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number of distlock",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "distlock v%s\n", Version)
		},
	})

	return root
}
