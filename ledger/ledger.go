package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/rushteam/newsrec/core"
	"github.com/rushteam/newsrec/pkg/logger"
)

// Ledger 是曝光/点击账本，推荐链路里唯一的可变共享资源。
//
// 写路径的约束（见各方法）：
//   - 每个逻辑操作一个事务：WriteImpression、LogClick 各自原子提交，
//     进程中途崩溃不会留下没有 ImpressionItem 的 Impression 或重复 Click
//   - 写失败整体回滚并以 UNAVAILABLE 暴露给调用方（可重试，重试策略归调用方）
//
// 读路径查不到行时返回空结果而不是错误：空历史是新用户的正常状态。
type Ledger struct {
	db  *gorm.DB
	log *logger.Logger
}

func New(db *gorm.DB, baseLog *logger.Logger) *Ledger {
	return &Ledger{db: db, log: baseLog.With("component", "ledger")}
}

// AutoMigrate 建表（开发与测试用；生产 schema 由迁移任务管理）。
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&Session{},
		&Impression{},
		&ImpressionItem{},
		&Click{},
		&Item{},
	)
}

func unavailable(op string, err error) error {
	return core.NewDomainError(core.ModuleLedger, core.ErrorCodeUnavailable,
		fmt.Sprintf("ledger: %s: %v", op, err))
}

// ---------------------------------------------------------------------------
// Session
// ---------------------------------------------------------------------------

// EnsureSession 懒式补建会话：推荐请求可能带着一个从未见过的 session_id 进来，
// 落曝光前必须保证 sessions 行存在（外键安全）。重复 upsert 永不报错。
func (l *Ledger) EnsureSession(ctx context.Context, sessionID, anonymousID string) error {
	if sessionID == "" {
		return core.NewDomainError(core.ModuleLedger, core.ErrorCodeInvalidInput,
			"ledger: empty session_id")
	}
	row := &Session{
		SessionID:   sessionID,
		AnonymousID: anonymousID,
		StartedAt:   time.Now().UTC(),
	}
	err := l.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(row).Error
	if err != nil {
		return unavailable("ensure session", err)
	}
	return nil
}

// CreateSession 显式开启会话（POST /session/start），返回服务端生成的 session_id。
func (l *Ledger) CreateSession(ctx context.Context, s *Session) (string, error) {
	if s.SessionID == "" {
		s.SessionID = uuid.NewString()
	}
	if s.StartedAt.IsZero() {
		s.StartedAt = time.Now().UTC()
	}
	if err := l.db.WithContext(ctx).Create(s).Error; err != nil {
		return "", unavailable("create session", err)
	}
	return s.SessionID, nil
}

// ---------------------------------------------------------------------------
// Impression
// ---------------------------------------------------------------------------

// WriteImpression 单事务写入一条 Impression 与其全部 ImpressionItem。
// items 的 Position 必须是 1..N 的致密序列；任一插入失败整体回滚，
// 不会出现只有头没有明细的半截曝光。返回生成的 impression_id。
func (l *Ledger) WriteImpression(ctx context.Context, imp *Impression, items []*ImpressionItem) (string, error) {
	if len(items) == 0 {
		return "", core.NewDomainError(core.ModuleLedger, core.ErrorCodeInvalidInput,
			"ledger: impression with no items")
	}
	for i, it := range items {
		if it.Position != i+1 {
			return "", core.NewDomainError(core.ModuleLedger, core.ErrorCodeInvalidInput,
				fmt.Sprintf("ledger: positions are not dense: item %d has position %d", i, it.Position))
		}
	}

	if imp.ImpressionID == "" {
		imp.ImpressionID = uuid.NewString()
	}
	if imp.ServedAt.IsZero() {
		imp.ServedAt = time.Now().UTC()
	}

	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(imp).Error; err != nil {
			return err
		}
		for _, it := range items {
			it.ImpressionID = imp.ImpressionID
		}
		return tx.Create(&items).Error
	})
	if err != nil {
		return "", unavailable("write impression", err)
	}
	return imp.ImpressionID, nil
}

// ---------------------------------------------------------------------------
// Click
// ---------------------------------------------------------------------------

// ClickResult 是点击写入的显式结果：要么插入了新行（带 ClickID），
// 要么 (impression_id, item_id) 已存在、写入被忽略。重复不是错误。
type ClickResult struct {
	ClickID   string
	Duplicate bool
}

// LogClick 幂等记录一次点击。同一事务内先校验 Impression 存在
// （对未知 impression_id 返回 NOT_FOUND，而不是默默造一行孤儿），
// 再以 ON CONFLICT DO NOTHING 插入：唯一约束保证并发重复安全。
// open_type 未上报时默认 "ui"。
func (l *Ledger) LogClick(ctx context.Context, click *Click) (ClickResult, error) {
	if click.ImpressionID == "" || click.ItemID == "" {
		return ClickResult{}, core.NewDomainError(core.ModuleLedger, core.ErrorCodeInvalidInput,
			"ledger: click requires impression_id and item_id")
	}

	var result ClickResult
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&Impression{}).
			Where("impression_id = ?", click.ImpressionID).
			Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return core.NewDomainError(core.ModuleLedger, core.ErrorCodeNotFound,
				fmt.Sprintf("ledger: impression %s not found", click.ImpressionID))
		}

		if click.ClickID == "" {
			click.ClickID = uuid.NewString()
		}
		if click.ClickedAt.IsZero() {
			click.ClickedAt = time.Now().UTC()
		}
		if click.OpenType == "" {
			click.OpenType = "ui"
		}

		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "impression_id"}, {Name: "item_id"}},
			DoNothing: true,
		}).Create(click)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			result = ClickResult{Duplicate: true}
			return nil
		}
		result = ClickResult{ClickID: click.ClickID}
		return nil
	})
	if err != nil {
		if core.GetDomainError(err) != nil {
			return ClickResult{}, err
		}
		return ClickResult{}, unavailable("log click", err)
	}
	return result, nil
}

// ---------------------------------------------------------------------------
// 读访问（召回 / 特征补全 / 附属查询）
// ---------------------------------------------------------------------------

// RecentClickedItemIDs 返回用户最近点击的至多 k 个物品 ID，按点击时间倒序。
// clicks 表不存 anonymous_id，经 impressions_served 关联。
func (l *Ledger) RecentClickedItemIDs(ctx context.Context, anonymousID string, k int) ([]string, error) {
	if anonymousID == "" || k <= 0 {
		return nil, nil
	}
	var ids []string
	err := l.db.WithContext(ctx).
		Table("clicks").
		Select("clicks.item_id").
		Joins("JOIN impressions_served ON impressions_served.impression_id = clicks.impression_id").
		Where("impressions_served.anonymous_id = ?", anonymousID).
		Order("clicks.clicked_at DESC").
		Limit(k).
		Scan(&ids).Error
	if err != nil {
		return nil, unavailable("recent clicked item ids", err)
	}
	return ids, nil
}

// ClickCount 返回用户的历史点击总数，热/冷路径判定与 user_click_count 特征共用。
func (l *Ledger) ClickCount(ctx context.Context, anonymousID string) (int64, error) {
	if anonymousID == "" {
		return 0, nil
	}
	var n int64
	err := l.db.WithContext(ctx).
		Table("clicks").
		Joins("JOIN impressions_served ON impressions_served.impression_id = clicks.impression_id").
		Where("impressions_served.anonymous_id = ?", anonymousID).
		Count(&n).Error
	if err != nil {
		return 0, unavailable("click count", err)
	}
	return n, nil
}

// ItemIngestedAt 批量返回物品入库时间；入库时间为 NULL 或物品不存在时不出现在结果里。
func (l *Ledger) ItemIngestedAt(ctx context.Context, itemIDs []string) (map[string]time.Time, error) {
	out := make(map[string]time.Time, len(itemIDs))
	if len(itemIDs) == 0 {
		return out, nil
	}
	var rows []Item
	err := l.db.WithContext(ctx).
		Select("item_id", "ingested_at").
		Where("item_id IN ?", itemIDs).
		Find(&rows).Error
	if err != nil {
		return nil, unavailable("item ingested at", err)
	}
	for _, r := range rows {
		if r.IngestedAt != nil {
			out[r.ItemID] = *r.IngestedAt
		}
	}
	return out, nil
}

// Titles 批量返回物品标题。
func (l *Ledger) Titles(ctx context.Context, itemIDs []string) (map[string]string, error) {
	out := make(map[string]string, len(itemIDs))
	if len(itemIDs) == 0 {
		return out, nil
	}
	var rows []Item
	err := l.db.WithContext(ctx).
		Select("item_id", "title").
		Where("item_id IN ?", itemIDs).
		Find(&rows).Error
	if err != nil {
		return nil, unavailable("titles", err)
	}
	for _, r := range rows {
		out[r.ItemID] = r.Title
	}
	return out, nil
}

// RandomItems 从目录均匀随机取 n 个物品 ID（冷启动召回）。
// random() 在 postgres 与 sqlite 下同名，直接透传。
func (l *Ledger) RandomItems(ctx context.Context, n int, category, idPrefix string) ([]string, error) {
	if n <= 0 {
		return nil, nil
	}
	q := l.db.WithContext(ctx).Model(&Item{})
	if category != "" {
		q = q.Where("category = ?", category)
	}
	if idPrefix != "" {
		q = q.Where("item_id LIKE ?", idPrefix+"%")
	}
	var ids []string
	if err := q.Order("random()").Limit(n).Pluck("item_id", &ids).Error; err != nil {
		return nil, unavailable("random items", err)
	}
	return ids, nil
}

// HistoryEntry 是点击历史查询的一行。
type HistoryEntry struct {
	ItemID    string    `json:"item_id"`
	Title     string    `json:"title"`
	ClickedAt time.Time `json:"clicked_at"`
}

// ClickHistory 返回用户最近的点击历史（带标题），按点击时间倒序。
func (l *Ledger) ClickHistory(ctx context.Context, anonymousID string, limit int) ([]HistoryEntry, error) {
	if anonymousID == "" {
		return nil, nil
	}
	if limit <= 0 || limit > 50 {
		limit = 50
	}
	var out []HistoryEntry
	err := l.db.WithContext(ctx).
		Table("clicks").
		Select("items.item_id", "items.title", "clicks.clicked_at").
		Joins("JOIN impressions_served ON impressions_served.impression_id = clicks.impression_id").
		Joins("JOIN items ON items.item_id = clicks.item_id").
		Where("impressions_served.anonymous_id = ?", anonymousID).
		Order("clicks.clicked_at DESC").
		Limit(limit).
		Scan(&out).Error
	if err != nil {
		return nil, unavailable("click history", err)
	}
	return out, nil
}

// TrendingEntry 是热点榜的一行。
type TrendingEntry struct {
	ItemID string `json:"item_id"`
	Title  string `json:"title"`
	Clicks int64  `json:"clicks"`
}

// TrendingItems 返回全局点击最多的物品（热点榜的数据库兜底查询）。
func (l *Ledger) TrendingItems(ctx context.Context, limit int) ([]TrendingEntry, error) {
	if limit <= 0 {
		limit = 10
	}
	var out []TrendingEntry
	err := l.db.WithContext(ctx).
		Table("clicks").
		Select("items.item_id", "items.title", "COUNT(clicks.click_id) AS clicks").
		Joins("JOIN items ON items.item_id = clicks.item_id").
		Group("items.item_id, items.title").
		Order("clicks DESC").
		Limit(limit).
		Scan(&out).Error
	if err != nil {
		return nil, unavailable("trending items", err)
	}
	return out, nil
}
