package service

import (
	"errors"
	"fmt"
	"testing"
)

func TestRegenerationError_Retryable(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		category ErrorCategory
		want     bool
	}{
		{"备份创建失败", &BackupError{Kind: BackupCreation}, CategoryBackup, true},
		{"备份校验失败", &BackupError{Kind: BackupIntegrity}, CategoryBackup, true},
		{"备份配额不足", &BackupError{Kind: BackupQuota}, CategoryBackup, false},
		{"备份恢复失败", &BackupError{Kind: BackupRestoration}, CategoryBackup, false},
		{"人数不足", &GenerationError{Kind: GenerationInsufficient}, CategoryGeneration, false},
		{"生成异常", &GenerationError{Kind: GenerationFailed}, CategoryGeneration, true},
		{"已定稿", &GenerationError{Kind: GenerationFinalized, Err: ErrScheduleFinalized}, CategoryGeneration, false},
		{"校验失败", &ValidationError{}, CategoryValidation, false},
		{"替换失败", &ReplacementError{}, CategoryReplacement, true},
		{"回滚失败", &ReplacementError{RollbackFailed: true}, CategoryReplacement, false},
		{"并发", &SystemError{Kind: SystemConcurrent}, CategorySystem, true},
		{"内部错误", &SystemError{Kind: SystemInternal}, CategorySystem, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("第 1 次尝试: %w", tt.err)
			if got := IsRetryable(wrapped); got != tt.want {
				t.Errorf("期望可重试=%v，实际: %v", tt.want, got)
			}
			re, ok := AsRegenerationError(wrapped)
			if !ok || re.Category() != tt.category {
				t.Errorf("期望分类 %s，实际: %v", tt.category, re)
			}
		})
	}

	if IsRetryable(errors.New("未知错误")) {
		t.Error("非重排错误不应重试")
	}
}

func TestRegenerationError_Sentinels(t *testing.T) {
	cause := errors.New("磁盘已满")
	err := &BackupError{Week: "w1", Kind: BackupQuota, Err: fmt.Errorf("%w: %v", ErrBackupQuotaExceeded, cause)}
	if !errors.Is(err, ErrBackupFailed) || !errors.Is(err, ErrBackupQuotaExceeded) {
		t.Errorf("应同时匹配 ErrBackupFailed 与底层错误: %v", err)
	}

	rb := &ReplacementError{Week: "w1", RollbackFailed: true, Err: cause}
	if !errors.Is(rb, ErrRollbackFailed) || !errors.Is(rb, ErrReplacementFailed) || !errors.Is(rb, cause) {
		t.Errorf("回滚失败应匹配全部哨兵错误: %v", rb)
	}

	to := &SystemError{Week: "w1", Kind: SystemTimeout}
	if !errors.Is(to, ErrRegenerationTimeout) || errors.Is(to, ErrConcurrentOperation) {
		t.Errorf("超时错误匹配不正确: %v", to)
	}
}

func TestRecoveryActionsFor(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		first string
	}{
		{"配额不足先清理空间", &BackupError{Kind: BackupQuota}, ActionFreeStorage},
		{"人数不足先管理出勤", &GenerationError{Kind: GenerationInsufficient}, ActionManageAvailability},
		{"已定稿刷新", &GenerationError{Kind: GenerationFinalized}, ActionRefresh},
		{"回滚失败需手动恢复", &ReplacementError{RollbackFailed: true}, ActionManualRestore},
		{"替换失败可重试", &ReplacementError{}, ActionRetry},
		{"并发冲突刷新", &SystemError{Kind: SystemConcurrent}, ActionRefresh},
		{"未知错误刷新", errors.New("x"), ActionRefresh},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			actions := RecoveryActionsFor(tt.err)
			if len(actions) == 0 || actions[0] != tt.first {
				t.Errorf("期望首个动作为 %s，实际: %v", tt.first, actions)
			}
		})
	}
}
