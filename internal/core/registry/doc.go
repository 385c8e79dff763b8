// Package registry 实现服务端会话注册表
//
// Registry 是 key → 会话句柄 的并发映射，按 key 的 murmur3 哈希分片。
//
// # 迭代与删除
//
// ForEach 对快照中的每个存活条目调用 fn，fn 内可以安全地 Insert/Erase。
// 若 Erase 发生时某条目正在被 ForEach 访问，Erase 的回调会推迟到所有访问者离开后执行，
// 因此 Erase 回调报告成功之后，任何 ForEach 都不会再看到该句柄。
package registry
