package all

// 统一导入所有内置策略变体以触发 init() 注册。

import (
	_ "github.com/betbot/quanttrader/internal/strategies/fundingrate"
	_ "github.com/betbot/quanttrader/internal/strategies/mapctdiff"
	_ "github.com/betbot/quanttrader/internal/strategies/zscore"
)
