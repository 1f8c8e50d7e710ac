package service

import (
	"errors"
	"fmt"
)

// ── 重排模块业务错误 ──

var (
	ErrConcurrentOperation = errors.New("该周正在重排，请稍后再试")
	ErrRegenerationTimeout = errors.New("重排超时")
	ErrWeekNotFound        = errors.New("赛周不存在")
	ErrNoParticipants      = errors.New("赛季名册为空")
	ErrScheduleFinalized   = errors.New("排组已定稿，不能重排")
	ErrGenerationFailed    = errors.New("排组生成失败")
	ErrValidationFailed    = errors.New("排组校验未通过")
	ErrReplacementFailed   = errors.New("排组替换失败")
	ErrRollbackFailed      = errors.New("排组替换失败且备份恢复失败")
	ErrBackupFailed        = errors.New("排组备份失败")
	ErrInvalidTransition   = errors.New("非法的重排状态迁移")
	ErrSystem              = errors.New("重排系统错误")
)

// ErrorCategory 错误分类
type ErrorCategory string

const (
	CategoryBackup      ErrorCategory = "backup"
	CategoryGeneration  ErrorCategory = "generation"
	CategoryValidation  ErrorCategory = "validation"
	CategoryReplacement ErrorCategory = "replacement"
	CategorySystem      ErrorCategory = "system"
)

// 用户可执行的恢复动作
const (
	ActionRetry              = "retry"
	ActionManageAvailability = "manage_availability"
	ActionManualRestore      = "manual_restore"
	ActionRefresh            = "refresh"
	ActionFreeStorage        = "free_storage"
)

// RegenerationError 所有重排错误变体的公共视图
type RegenerationError interface {
	error
	Category() ErrorCategory
	Retryable() bool
	WeekID() string
}

// ── 备份 ──

// BackupErrorKind 备份错误种类
type BackupErrorKind string

const (
	BackupCreation    BackupErrorKind = "creation"
	BackupIntegrity   BackupErrorKind = "integrity"
	BackupRestoration BackupErrorKind = "restoration"
	BackupQuota       BackupErrorKind = "quota"
)

// BackupError 备份阶段错误
type BackupError struct {
	Week string
	Kind BackupErrorKind
	Err  error
}

func (e *BackupError) Error() string {
	return fmt.Sprintf("周 %s 备份失败(%s): %v", e.Week, e.Kind, e.Err)
}
func (e *BackupError) Unwrap() []error { return nonNil(ErrBackupFailed, e.Err) }
func (e *BackupError) Category() ErrorCategory { return CategoryBackup }
func (e *BackupError) WeekID() string { return e.Week }

// Retryable 配额不足与恢复失败不重试
func (e *BackupError) Retryable() bool {
	return e.Kind == BackupCreation || e.Kind == BackupIntegrity
}

// ── 生成 ──

// GenerationErrorKind 生成错误种类
type GenerationErrorKind string

const (
	GenerationInsufficient   GenerationErrorKind = "insufficient"
	GenerationWeekMissing    GenerationErrorKind = "week_missing"
	GenerationNoParticipants GenerationErrorKind = "no_participants"
	GenerationFinalized      GenerationErrorKind = "finalized"
	GenerationFailed         GenerationErrorKind = "failed"
)

// GenerationError 生成阶段错误
type GenerationError struct {
	Week     string
	Kind     GenerationErrorKind
	Eligible int
	Err      error
}

func (e *GenerationError) Error() string {
	if e.Kind == GenerationInsufficient {
		return fmt.Sprintf("周 %s 可排球员仅 %d 人，至少需要 %d 人", e.Week, e.Eligible, minEligible)
	}
	return fmt.Sprintf("周 %s 排组生成失败(%s): %v", e.Week, e.Kind, e.Err)
}
func (e *GenerationError) Unwrap() []error { return nonNil(ErrGenerationFailed, e.Err) }
func (e *GenerationError) Category() ErrorCategory { return CategoryGeneration }
func (e *GenerationError) WeekID() string { return e.Week }
func (e *GenerationError) Retryable() bool { return e.Kind == GenerationFailed }

// ── 校验 ──

// ValidationError 候选排组未通过校验；重试不会改变输入，因此不重试
type ValidationError struct {
	Week   string
	Errors []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("周 %s 排组校验未通过: %d 项错误", e.Week, len(e.Errors))
}
func (e *ValidationError) Unwrap() error { return ErrValidationFailed }
func (e *ValidationError) Category() ErrorCategory { return CategoryValidation }
func (e *ValidationError) WeekID() string { return e.Week }
func (e *ValidationError) Retryable() bool { return false }

// ── 替换 ──

// ReplacementError 替换阶段错误；RollbackFailed 表示恢复备份也失败
type ReplacementError struct {
	Week           string
	BackupID       string
	RollbackFailed bool
	Err            error
}

func (e *ReplacementError) Error() string {
	if e.RollbackFailed {
		return fmt.Sprintf("周 %s 排组替换失败且无法从备份 %s 恢复: %v", e.Week, e.BackupID, e.Err)
	}
	return fmt.Sprintf("周 %s 排组替换失败: %v", e.Week, e.Err)
}

func (e *ReplacementError) Unwrap() []error {
	if e.RollbackFailed {
		return nonNil(ErrRollbackFailed, ErrReplacementFailed, e.Err)
	}
	return nonNil(ErrReplacementFailed, e.Err)
}
func (e *ReplacementError) Category() ErrorCategory { return CategoryReplacement }
func (e *ReplacementError) WeekID() string { return e.Week }
func (e *ReplacementError) Retryable() bool { return !e.RollbackFailed }

// ── 系统 ──

// SystemErrorKind 系统错误种类
type SystemErrorKind string

const (
	SystemConcurrent SystemErrorKind = "concurrent"
	SystemTimeout    SystemErrorKind = "timeout"
	SystemInternal   SystemErrorKind = "internal"
)

// SystemError 并发、超时与内部错误
type SystemError struct {
	Week string
	Kind SystemErrorKind
	Err  error
}

func (e *SystemError) Error() string {
	return fmt.Sprintf("周 %s 重排系统错误(%s): %v", e.Week, e.Kind, e.Err)
}

func (e *SystemError) Unwrap() []error {
	switch e.Kind {
	case SystemConcurrent:
		return nonNil(ErrConcurrentOperation, e.Err)
	case SystemTimeout:
		return nonNil(ErrRegenerationTimeout, e.Err)
	default:
		return nonNil(ErrSystem, e.Err)
	}
}
func (e *SystemError) Category() ErrorCategory { return CategorySystem }
func (e *SystemError) WeekID() string { return e.Week }
func (e *SystemError) Retryable() bool {
	return e.Kind == SystemConcurrent || e.Kind == SystemTimeout
}

// ── 分类辅助 ──

func nonNil(errs ...error) []error {
	out := errs[:0]
	for _, e := range errs {
		if e != nil {
			out = append(out, e)
		}
	}
	return out
}

// AsRegenerationError 提取错误变体
func AsRegenerationError(err error) (RegenerationError, bool) {
	var re RegenerationError
	if errors.As(err, &re) {
		return re, true
	}
	return nil, false
}

// IsRetryable 仅重排错误变体可能重试
func IsRetryable(err error) bool {
	if re, ok := AsRegenerationError(err); ok {
		return re.Retryable()
	}
	return false
}

// RecoveryActionsFor 按错误分类给出用户可执行的恢复动作
func RecoveryActionsFor(err error) []string {
	re, ok := AsRegenerationError(err)
	if !ok {
		return []string{ActionRefresh}
	}

	switch e := re.(type) {
	case *BackupError:
		if e.Kind == BackupQuota {
			return []string{ActionFreeStorage, ActionRetry}
		}
		if e.Kind == BackupRestoration {
			return []string{ActionManualRestore, ActionRefresh}
		}
		return []string{ActionRetry, ActionRefresh}
	case *GenerationError:
		if e.Kind == GenerationFailed {
			return []string{ActionRetry}
		}
		if e.Kind == GenerationFinalized {
			return []string{ActionRefresh}
		}
		return []string{ActionManageAvailability, ActionRefresh}
	case *ValidationError:
		return []string{ActionManageAvailability, ActionRetry}
	case *ReplacementError:
		if e.RollbackFailed {
			return []string{ActionManualRestore, ActionRefresh}
		}
		return []string{ActionRetry, ActionRefresh}
	case *SystemError:
		if e.Kind == SystemConcurrent {
			return []string{ActionRefresh}
		}
		return []string{ActionRetry, ActionRefresh}
	default:
		return []string{ActionRefresh}
	}
}
