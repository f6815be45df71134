package ledger

import "time"

// 账本的四张表：Session → Impression → ImpressionItem → Click。
// Impression/ImpressionItem 在服务一次推荐时事务性写入且此后不可变；
// Click 事后异步写入，(impression_id, item_id) 唯一，不更新不删除。
// Item 是外部目录协作方维护的只读表，这里只声明读取需要的列。

// Session 表示一次用户访问。推荐请求引用未知 session_id 时会被懒式补建
// （外键安全），因此 AnonymousID 之外的字段都可能为空。
type Session struct {
	SessionID   string     `gorm:"column:session_id;primaryKey" json:"session_id"`
	AnonymousID string     `gorm:"column:anonymous_id;index" json:"anonymous_id"`
	DeviceType  string     `gorm:"column:device_type" json:"device_type,omitempty"`
	AppVersion  string     `gorm:"column:app_version" json:"app_version,omitempty"`
	UserAgent   string     `gorm:"column:user_agent" json:"user_agent,omitempty"`
	Referrer    string     `gorm:"column:referrer" json:"referrer,omitempty"`
	StartedAt   time.Time  `gorm:"column:started_at" json:"started_at"`
	EndedAt     *time.Time `gorm:"column:ended_at" json:"ended_at,omitempty"`
}

func (Session) TableName() string { return "sessions" }

// Impression 是一次已服务的推荐列表，每个推荐请求恰好创建一条。
type Impression struct {
	ImpressionID string    `gorm:"column:impression_id;primaryKey" json:"impression_id"`
	SessionID    string    `gorm:"column:session_id;not null;index" json:"session_id"`
	AnonymousID  string    `gorm:"column:anonymous_id;index" json:"anonymous_id"`
	Surface      string    `gorm:"column:surface" json:"surface"`
	PageSize     int       `gorm:"column:page_size" json:"page_size"`
	Locale       string    `gorm:"column:locale" json:"locale,omitempty"`
	ServedAt     time.Time `gorm:"column:served_at;index" json:"served_at"`
}

func (Impression) TableName() string { return "impressions_served" }

// ImpressionItem 是曝光列表中的一个位置，带全量分数佐证（召回分、召回位次、
// 排序分、最终分）。Position 在同一 Impression 内是 1..N 的致密序列。
type ImpressionItem struct {
	ImpressionID   string  `gorm:"column:impression_id;primaryKey" json:"impression_id"`
	Position       int     `gorm:"column:position;primaryKey" json:"position"`
	ItemID         string  `gorm:"column:item_id;not null;index" json:"item_id"`
	RetrievalScore float64 `gorm:"column:retrieval_score" json:"retrieval_score"`
	RetrievalPos   int     `gorm:"column:retrieval_pos" json:"retrieval_pos"`
	RankScore      float64 `gorm:"column:rank_score" json:"rank_score"`
	FinalScore     float64 `gorm:"column:final_score" json:"final_score"`
}

func (ImpressionItem) TableName() string { return "impression_items" }

// Click 是用户对某次曝光中某个物品的一次交互。
// (impression_id, item_id) 的唯一约束让并发重复点击天然安全：
// 后到者观察到 duplicate_ignored，而不是错误或第二行。
type Click struct {
	ClickID      string    `gorm:"column:click_id;primaryKey" json:"click_id"`
	ImpressionID string    `gorm:"column:impression_id;not null;uniqueIndex:uniq_click_impression_item" json:"impression_id"`
	ItemID       string    `gorm:"column:item_id;not null;uniqueIndex:uniq_click_impression_item" json:"item_id"`
	Position     int       `gorm:"column:position" json:"position"`
	ClickedAt    time.Time `gorm:"column:clicked_at;index" json:"clicked_at"`
	DwellMs      int       `gorm:"column:dwell_ms" json:"dwell_ms"`
	OpenType     string    `gorm:"column:open_type" json:"open_type"`
}

func (Click) TableName() string { return "clicks" }

// Item 是只读的目录条目，由外部目录协作方负责写入。
type Item struct {
	ItemID      string     `gorm:"column:item_id;primaryKey" json:"item_id"`
	Title       string     `gorm:"column:title" json:"title"`
	Category    string     `gorm:"column:category;index" json:"category,omitempty"`
	Subcategory string     `gorm:"column:subcategory" json:"subcategory,omitempty"`
	IngestedAt  *time.Time `gorm:"column:ingested_at" json:"ingested_at,omitempty"`
}

func (Item) TableName() string { return "items" }
