package main

import (
	"context"
	"fmt"
	"time"

	"github.com/agntsupport/hospitalsystem-sub004/internal/config"
	"github.com/agntsupport/hospitalsystem-sub004/internal/infra"
	"github.com/agntsupport/hospitalsystem-sub004/internal/worker"

	"github.com/spf13/cobra"
)

func newDLQCommand() *cobra.Command {
	var queue string
	var limite int
	cmd := &cobra.Command{
		Use:   "dlq",
		Short: "Muestra los trabajos fallidos por cola, o los reencola",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
			rdb, err := infra.NewRedis(cfg.RedisURL)
			if err != nil {
				return fmt.Errorf("redis: %w", err)
			}
			defer rdb.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			dlq := worker.NewDeadLetters(rdb)

			if queue != "" {
				moved, err := dlq.Requeue(ctx, queue, limite)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %d reencolados\n", queue, moved)
				return nil
			}
			lengths, err := dlq.Lengths(ctx)
			if err != nil {
				return err
			}
			for _, q := range worker.Queues {
				fmt.Fprintf(cmd.OutOrStdout(), "%-20s %d\n", q, lengths[q])
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&queue, "reintentar", "", "cola cuyos fallidos se reencolan")
	cmd.Flags().IntVar(&limite, "max", 100, "máximo de trabajos a reencolar")
	return cmd
}
