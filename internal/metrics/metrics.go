package metrics

// Collector 重排相关指标
type Collector interface {
	// RecordRegenerationAttempt 每次进入一轮尝试（含重试）
	RecordRegenerationAttempt()
	// RecordRegenerationOutcome outcome: success | failed | restored | timed_out；category 为空表示成功
	RecordRegenerationOutcome(outcome, category string)
	// ObserveRegenerationDuration 整个重排（含重试与退避）耗时
	ObserveRegenerationDuration(seconds float64)
	// SetActiveRegenerations 当前处于进行中状态的周数
	SetActiveRegenerations(n int)
	// RecordStaleSweep 超时清理强制失败的周数
	RecordStaleSweep(n int)
	// RecordBackup 备份大小
	RecordBackup(bytes int64)
	// RecordNotification 已发布的通知，按级别计数
	RecordNotification(level string)
}

// NopMetrics 丢弃所有指标，用于测试或关闭指标时
type NopMetrics struct{}

var _ Collector = (*NopMetrics)(nil)

// NewNop 创建空实现
func NewNop() *NopMetrics {
	return &NopMetrics{}
}

func (n *NopMetrics) RecordRegenerationAttempt() {}
func (n *NopMetrics) RecordRegenerationOutcome(_, _ string) {}
func (n *NopMetrics) ObserveRegenerationDuration(_ float64) {}
func (n *NopMetrics) SetActiveRegenerations(_ int) {}
func (n *NopMetrics) RecordStaleSweep(_ int) {}
func (n *NopMetrics) RecordBackup(_ int64) {}
func (n *NopMetrics) RecordNotification(_ string) {}
