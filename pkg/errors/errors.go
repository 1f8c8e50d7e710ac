package errors

import "errors"

// ErrOptimisticLock 乐观锁冲突：记录已被其他操作修改
var ErrOptimisticLock = errors.New("数据已被其他操作修改，请刷新后重试")

// ErrLockHeld 存储层重排锁已被其他进程持有
var ErrLockHeld = errors.New("该周排组正被其他操作占用")
