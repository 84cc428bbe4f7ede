package main

import (
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/betbot/quanttrader/internal/strategies"
	"github.com/betbot/quanttrader/pkg/config"
)

func newValidateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "加载并校验配置，打印各交易对的策略敞口",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadFromFile(*configPath)
			if err != nil {
				return err
			}
			if err := checkStrategyTypes(cfg.Strategies); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			sums := config.AbsMaxPositions(cfg.Strategies)
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "SYMBOL\tSTRATEGIES\tΣ MAX_ABS_POS")
			for _, sym := range config.Symbols(cfg.Strategies) {
				n := 0
				for _, s := range cfg.Strategies {
					if s.Symbol == sym {
						n++
					}
				}
				flag := ""
				if sums[sym] > 1 {
					flag = "  (>1, 不截断)"
				}
				fmt.Fprintf(tw, "%s\t%d\t%g%s\n", sym, n, sums[sym], flag)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			if conflicts := config.OrderTypeConflicts(cfg.Strategies); len(conflicts) > 0 {
				fmt.Fprintf(out, "⚠️ 以下交易对的 order_type 不一致，将使用最短周期的第一个策略: %v\n", conflicts)
			}
			fmt.Fprintf(out, "✅ 配置有效：%d 个策略\n", len(cfg.Strategies))
			return nil
		},
	}
}

// checkStrategyTypes 确认每个策略 type 都已注册
func checkStrategyTypes(list []config.StrategyConfig) error {
	known := make(map[string]bool)
	for _, t := range strategies.RegisteredTypes() {
		known[t] = true
	}
	var unknown []string
	for _, s := range list {
		if !known[s.Type] {
			unknown = append(unknown, fmt.Sprintf("%s(%s)", s.Key(), s.Type))
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return fmt.Errorf("未知的策略类型: %v（已注册: %v）", unknown, strategies.RegisteredTypes())
	}
	return nil
}
