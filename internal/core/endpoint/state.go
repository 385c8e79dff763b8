package endpoint

import (
	"fmt"
	"sync/atomic"
)

// ============================================================================
// State 端点状态
// ============================================================================

// State 端点状态
type State int32

const (
	// StateStopped 已停止
	StateStopped State = iota
	// StateStarting 启动中（连接/握手）
	StateStarting
	// StateStarted 已启动
	StateStarted
	// StateStopping 停止中（拆除）
	StateStopping
)

// String 返回状态名称
func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateStarting:
		return "starting"
	case StateStarted:
		return "started"
	case StateStopping:
		return "stopping"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// legalTransition 合法迁移表
func legalTransition(from, to State) bool {
	switch from {
	case StateStopped:
		return to == StateStarting
	case StateStarting:
		return to == StateStarted || to == StateStopping
	case StateStarted:
		return to == StateStopping
	case StateStopping:
		return to == StateStopped
	}
	return false
}

// ============================================================================
// StateCell
// ============================================================================

// StateCell 原子状态单元
type StateCell struct {
	v        atomic.Int32
	observer func(from, to State)
}

// Load 返回当前状态
func (c *StateCell) Load() State {
	return State(c.v.Load())
}

// Transition 尝试 from → to
//
// 成功返回新状态；当前状态不是 from 时返回 *TransitionError。
// 请求非法的迁移对属于编程错误，直接 panic。
func (c *StateCell) Transition(from, to State) (State, error) {
	if !legalTransition(from, to) {
		panic(fmt.Sprintf("endpoint: illegal transition %s -> %s", from, to))
	}
	if !c.v.CompareAndSwap(int32(from), int32(to)) {
		return c.Load(), &TransitionError{From: from, To: to, Actual: c.Load()}
	}
	if c.observer != nil {
		c.observer(from, to)
	}
	return to, nil
}

// mustTransition 迁移必须成功，否则说明状态机被破坏
func (c *StateCell) mustTransition(from, to State) {
	if _, err := c.Transition(from, to); err != nil {
		panic(err)
	}
}
