package core

import "context"

// Store 是 KV 存储的领域接口：接口定义在领域层（core），由基础设施层（store）实现，
// 避免领域代码依赖具体后端。
type Store interface {
	// Name 返回存储后端名称（用于日志/监控）
	Name() string

	// Get 读取单个 key 的值
	Get(ctx context.Context, key string) ([]byte, error)

	// Set 写入单个 key-value，ttl 单位秒（可选，0 表示不过期）
	Set(ctx context.Context, key string, value []byte, ttl ...int) error

	// Delete 删除单个 key
	Delete(ctx context.Context, key string) error

	// Close 关闭连接/释放资源
	Close() error
}

// KeyValueStore 是 Store 的扩展接口，增加有序集合操作。
// 服务里的热点榜（trending）用它做读穿透缓存：点击累加分数、按分数取 TopN。
type KeyValueStore interface {
	Store

	// ZAdd 向有序集合写入成员及分数
	ZAdd(ctx context.Context, key string, score float64, member string) error

	// ZIncrBy 为成员累加分数，成员不存在时按 0 起算
	ZIncrBy(ctx context.Context, key string, delta float64, member string) (float64, error)

	// ZRange 按分数降序获取 [start, stop] 区间的成员
	ZRange(ctx context.Context, key string, start, stop int64) ([]string, error)

	// ZRangeWithScores 同 ZRange，但带分数返回
	ZRangeWithScores(ctx context.Context, key string, start, stop int64) ([]ScoredMember, error)
}

// ScoredMember 是有序集合的一个成员及其分数。
type ScoredMember struct {
	Member string
	Score  float64
}

// Store 错误定义（使用统一的 DomainError）
var (
	// ErrStoreNotFound 表示 key 不存在
	ErrStoreNotFound = NewDomainError(ModuleStore, ErrorCodeNotFound, "store: key not found")

	// ErrStoreNotSupported 表示操作不支持
	ErrStoreNotSupported = NewDomainError(ModuleStore, ErrorCodeNotSupported, "store: operation not supported")
)

// IsStoreNotFound 检查错误是否为 key 不存在。
func IsStoreNotFound(err error) bool {
	if domainErr := GetDomainError(err); domainErr != nil && domainErr.Module == ModuleStore {
		return domainErr.Code == ErrorCodeNotFound
	}
	return false
}
