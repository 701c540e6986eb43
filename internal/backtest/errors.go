package backtest

import "errors"

// ErrInvalidConfig 表示不支持的出场类型、未知方向等配置错误。
// 只让当前这次回测失败，不影响搜索中的兄弟任务。
var ErrInvalidConfig = errors.New("回测配置不合法")
