package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/daniel-salmon/distlock/pkg/client"
	"github.com/daniel-salmon/distlock/pkg/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// lock command group, c is set up before any subcommand runs
func newLockCmd(v *viper.Viper) *cobra.Command {
	var c *client.Client

	cmd := &cobra.Command{
		Use:   "lock",
		Short: "Perform lock operations against a running server",
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			config.InitEnv(v)
			if err := v.BindPFlags(cmd.Flags()); err != nil {
				return err
			}
			cfg, err := config.LoadClient(v)
			if err != nil {
				return err
			}

			c, err = client.NewClient(cfg.Endpoint,
				client.WithCallTimeout(cfg.Timeout),
				client.WithDefaultHeartbeat(cfg.Heartbeat),
			)
			return err
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			if c == nil {
				return nil
			}
			return c.Close()
		},
	}

	d := config.DefaultClientConfig()
	cmd.PersistentFlags().String(config.KeyEndpoint, d.Endpoint, "gRPC address of the distlock server")
	cmd.PersistentFlags().Duration(config.KeyTimeout, d.Timeout, "deadline of every single call, 0 for none")
	cmd.PersistentFlags().Duration(config.KeyHeartbeat, d.Heartbeat, "poll interval of a blocking acquire")

	cmd.AddCommand(&cobra.Command{
		Use:   "create [key]",
		Short: "Create a lock",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.CreateLock(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created=%s\n", args[0])
			return nil
		},
	})

	acquireCmd := &cobra.Command{
		Use:   "acquire [key]",
		Short: "Acquire a lock",
		Long: `Acquire a lock. By default this blocks until the lock is free.
The printed clock is the fencing token needed to release it.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			lease, _ := cmd.Flags().GetDuration("lease")
			blocking, _ := cmd.Flags().GetBool("blocking")
			wait, _ := cmd.Flags().GetDuration("wait")

			lock, err := c.AcquireLock(cmd.Context(), args[0],
				client.WithLease(lease),
				client.WithBlocking(blocking),
				client.WithTimeout(wait),
			)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), lock)
			return nil
		},
	}
	acquireCmd.Flags().Duration("lease", 0, "lease to request, 0 uses the server default")
	acquireCmd.Flags().Bool("blocking", true, "wait until the lock is free")
	acquireCmd.Flags().Duration("wait", -time.Second, "give up a blocking acquire after this long, negative waits forever")
	cmd.AddCommand(acquireCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "release [key] [clock]",
		Short: "Release a lock held at the given fencing token",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			clock, err := strconv.ParseUint(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid clock %q: %w", args[1], err)
			}
			if err := c.ReleaseLock(cmd.Context(), args[0], clock); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "released=%s\n", args[0])
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "get [key]",
		Short: "Show a lock",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			lock, err := c.GetLock(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), lock)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List all locks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			locks, err := c.ListLocks(cmd.Context())
			if err != nil {
				return err
			}
			for _, lock := range locks {
				fmt.Fprintln(cmd.OutOrStdout(), lock)
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete [key]",
		Short: "Delete a lock",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.DeleteLock(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted=%s\n", args[0])
			return nil
		},
	})

	return cmd
}
