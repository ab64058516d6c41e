package run

import (
	"time"

	"github.com/John-Robertt/jukebox/internal/config"
	"github.com/John-Robertt/jukebox/internal/domain"
)

// Observer 用于把“运行进度/阶段/条目结果”从核心执行流程中解耦出来。
//
// 约束：
// - run 包只负责发事件，不做任何输出（避免污染 stdout 的 JSON 契约）。
// - Observer 的实现必须并发安全：事件可能来自多个 goroutine。
type Observer interface {
	// OnStart 在 ExecuteWithObserver 开始时调用（应尽量早，保证用户 1 秒内看到输出）。
	OnStart(eff config.EffectiveConfig)
	// OnPhaseDone 在阶段结束/就绪时调用（scan / group / plan / exec）。
	OnPhaseDone(name string, fields map[string]any, dur time.Duration)
	// OnItemStart 在 worker 开始处理某条记录时调用。
	OnItemStart(key string)
	// OnItemDone 在某条记录处理完成时调用；idx 单调递增（1..total）。
	OnItemDone(idx, total int, key string, res domain.ItemResult, dur time.Duration)
}
