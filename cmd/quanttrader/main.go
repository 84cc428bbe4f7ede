package main

import (
	"os"

	"github.com/sirupsen/logrus"

	// 导入策略变体以触发 init() 注册
	_ "github.com/betbot/quanttrader/internal/strategies/all"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		logrus.Error(err)
		os.Exit(1)
	}
}
