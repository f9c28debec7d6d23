package errors

import "errors"

// ErrOptimisticLock 乐观锁冲突：记录已被其他操作修改
var ErrOptimisticLock = errors.New("数据已被其他操作修改，请刷新后重试")

// ── 写入时引用校验 ──

var (
	// ErrSectionMissing 待写入的教学班不存在或不属于该学期
	ErrSectionMissing = errors.New("教学班不存在或不属于该学期")
	// ErrClassroomMissing 安排引用的教室不存在或已停用
	ErrClassroomMissing = errors.New("教室不存在或已停用")
)
