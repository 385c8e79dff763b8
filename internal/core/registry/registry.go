package registry

import (
	"sync"
	"sync/atomic"

	"github.com/spaolacci/murmur3"

	"github.com/dep2p/go-netkit/pkg/lib/log"
)

var logger = log.Logger("core/registry")

// DefaultShards 默认分片数
const DefaultShards = 16

// ============================================================================
// 条目
// ============================================================================

type entry[V any] struct {
	val V

	mu       sync.Mutex
	alive    bool
	visitors int
	erased   []func(bool)
}

// enter 进入访问；条目已删除时返回 false
func (e *entry[V]) enter() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.alive {
		return false
	}
	e.visitors++
	return true
}

// leave 离开访问；最后一个访问者执行被推迟的删除回调
func (e *entry[V]) leave() {
	e.mu.Lock()
	e.visitors--
	var pending []func(bool)
	if e.visitors == 0 {
		pending, e.erased = e.erased, nil
	}
	e.mu.Unlock()

	for _, cb := range pending {
		cb(true)
	}
}

// kill 标记删除；有访问者时回调被推迟
func (e *entry[V]) kill(onDone func(bool)) {
	e.mu.Lock()
	e.alive = false
	if e.visitors > 0 {
		if onDone != nil {
			e.erased = append(e.erased, onDone)
		}
		e.mu.Unlock()
		return
	}
	e.mu.Unlock()

	if onDone != nil {
		onDone(true)
	}
}

// ============================================================================
// Registry
// ============================================================================

type shard[V any] struct {
	mu      sync.RWMutex
	entries map[string]*entry[V]
}

// Registry 分片会话注册表
type Registry[V any] struct {
	shards []*shard[V]
	mask   uint32
	size   atomic.Int64
}

// New 创建注册表
//
// shards 会向上取整为 2 的幂，<= 0 时使用 DefaultShards。
func New[V any](shards int) *Registry[V] {
	if shards <= 0 {
		shards = DefaultShards
	}
	n := nextPowerOfTwo(uint32(shards))
	r := &Registry[V]{
		shards: make([]*shard[V], n),
		mask:   n - 1,
	}
	for i := range r.shards {
		r.shards[i] = &shard[V]{entries: make(map[string]*entry[V])}
	}
	return r
}

func (r *Registry[V]) shard(key string) *shard[V] {
	return r.shards[murmur3.Sum32([]byte(key))&r.mask]
}

// Insert key 不存在时插入
//
// onDone 同步报告是否插入成功；key 已存在（重复的远端地址）时报告 false。
func (r *Registry[V]) Insert(key string, val V, onDone func(inserted bool)) {
	sh := r.shard(key)

	sh.mu.Lock()
	_, exists := sh.entries[key]
	if !exists {
		sh.entries[key] = &entry[V]{val: val, alive: true}
		r.size.Add(1)
	}
	sh.mu.Unlock()

	if exists {
		logger.Debug("重复的会话 key", "key", key)
	}
	if onDone != nil {
		onDone(!exists)
	}
}

// Erase 删除 key
//
// 幂等：key 不存在时 onDone(false)。若条目正在被 ForEach 访问，onDone(true)
// 在最后一个访问者离开后才调用。
func (r *Registry[V]) Erase(key string, onDone func(erased bool)) {
	sh := r.shard(key)

	sh.mu.Lock()
	e, ok := sh.entries[key]
	if ok {
		delete(sh.entries, key)
		r.size.Add(-1)
	}
	sh.mu.Unlock()

	if !ok {
		if onDone != nil {
			onDone(false)
		}
		return
	}
	e.kill(onDone)
}

// Find 查找 key 对应的句柄
func (r *Registry[V]) Find(key string) (V, bool) {
	sh := r.shard(key)
	sh.mu.RLock()
	e, ok := sh.entries[key]
	sh.mu.RUnlock()

	if !ok {
		var zero V
		return zero, false
	}
	return e.val, true
}

// Contains 报告 key 是否存在
func (r *Registry[V]) Contains(key string) bool {
	_, ok := r.Find(key)
	return ok
}

// ForEach 对每个存活的句柄调用 fn
//
// 遍历基于快照，不持有分片锁调用 fn；遍历开始后插入的条目可能不被访问。
func (r *Registry[V]) ForEach(fn func(key string, val V)) {
	type item struct {
		key string
		e   *entry[V]
	}

	for _, sh := range r.shards {
		sh.mu.RLock()
		snapshot := make([]item, 0, len(sh.entries))
		for k, e := range sh.entries {
			snapshot = append(snapshot, item{k, e})
		}
		sh.mu.RUnlock()

		for _, it := range snapshot {
			if !it.e.enter() {
				continue
			}
			func() {
				defer it.e.leave()
				fn(it.key, it.e.val)
			}()
		}
	}
}

// Keys 返回当前所有 key
func (r *Registry[V]) Keys() []string {
	keys := make([]string, 0, r.Size())
	for _, sh := range r.shards {
		sh.mu.RLock()
		for k := range sh.entries {
			keys = append(keys, k)
		}
		sh.mu.RUnlock()
	}
	return keys
}

// Size 返回条目数
func (r *Registry[V]) Size() int {
	return int(r.size.Load())
}

// Empty 报告注册表是否为空
func (r *Registry[V]) Empty() bool {
	return r.Size() == 0
}

// nextPowerOfTwo 返回 >= v 的最小 2 的幂
func nextPowerOfTwo(v uint32) uint32 {
	if v <= 1 {
		return 1
	}
	v--
	v |= v >> 1
	v |= v >> 2
	v |= v >> 4
	v |= v >> 8
	v |= v >> 16
	return v + 1
}
