package evqueue

import "errors"

var (
	// ErrChainFired 延迟链已经触发，无法再持有
	ErrChainFired = errors.New("evqueue: deferred chain already fired")
)
