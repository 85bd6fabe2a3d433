package github

// Latch 等待确认请求的挂起标记
type Latch uint8

const (
	// AwaitCreate 已见到新建合并请求流程的发起请求
	AwaitCreate Latch = 1 << iota
	// AwaitDelete 已见到删除仓库流程的发起请求
	AwaitDelete
)

// State 分类器实例私有的挂起状态机
//
// Idle 表示无挂起；两个流程可同时挂起，各自独立消费。
// 未被确认的挂起永久保留，没有超时。
type State struct {
	latches Latch
}

// Idle 是否没有任何挂起
func (s State) Idle() bool { return s.latches == 0 }

// Awaiting 是否处于某个挂起
func (s State) Awaiting(l Latch) bool { return s.latches&l != 0 }

// arm 进入挂起
func (s *State) arm(l Latch) { s.latches |= l }

// consume 若处于挂起则清除并返回 true
func (s *State) consume(l Latch) bool {
	if !s.Awaiting(l) {
		return false
	}
	s.latches &^= l
	return true
}
