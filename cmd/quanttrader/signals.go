package main

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/betbot/quanttrader/pkg/config"
	"github.com/betbot/quanttrader/pkg/signallog"
)

func newSignalsCmd(configPath *string) *cobra.Command {
	var (
		key string
		n   int
	)
	cmd := &cobra.Command{
		Use:   "signals",
		Short: "打印某个信号日志最近 n 条记录",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadBase(*configPath)
			if err != nil {
				return err
			}
			store, err := signallog.Open(signallog.Options{Backend: cfg.SignalStore.Backend, Path: cfg.SignalStore.Path})
			if err != nil {
				return err
			}
			defer store.Close()

			series, err := store.Load(cmd.Context(), key)
			if errors.Is(err, signallog.ErrNotExists) {
				return fmt.Errorf("信号日志 %s 不存在", key)
			}
			if err != nil {
				return err
			}
			if n > 0 && len(series) > n {
				series = series[len(series)-n:]
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "TIME (UTC)\tSIGNAL")
			for _, p := range series {
				fmt.Fprintf(tw, "%s\t%g\n", p.Time.UTC().Format(time.DateTime), p.Value)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVarP(&key, "key", "k", "", "信号日志 key，例如 zmom_BTCUSDT_5m")
	cmd.Flags().IntVar(&n, "n", 10, "显示条数（<=0 显示全部）")
	_ = cmd.MarkFlagRequired("key")
	return cmd
}
