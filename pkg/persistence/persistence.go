package persistence

// Service 持久化服务接口
// 模拟引擎通过它导出已封口的 K 线、成交批次和新闻历史，
// 重启后 populate 可以从导出数据续跑而不必从头生成。
type Service interface {
	// NewStore 创建（或打开）一个命名的存储空间
	// id 和 subIDs 拼接成前缀，例如 ("candles", "OIL", "1m")
	NewStore(id string, subIDs ...string) Store
	// Close 关闭底层存储
	Close() error
}

// Store 键值存储接口，值为 JSON 序列化后的对象
type Store interface {
	// Put 写入一个对象
	Put(key string, val interface{}) error
	// Get 读取一个对象到 val（指针）；不存在时返回 ErrKeyNotFound
	Get(key string, val interface{}) error
	// Keys 按字典序列出全部 key
	Keys() ([]string, error)
	// Delete 删除一个 key（不存在时不报错）
	Delete(key string) error
}
