package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/rushteam/newsrec/core"
	"github.com/rushteam/newsrec/ledger"
	"github.com/rushteam/newsrec/pipeline"
	"github.com/rushteam/newsrec/pkg/logger"
)

// trendingKey 是热点榜在 KV 存储里的 zset key。
const trendingKey = "newsrec:trending"

// RecommendRequest 推荐请求。AnonymousID 必填，SessionID 缺省时服务端生成。
type RecommendRequest struct {
	AnonymousID string `json:"anonymous_id" binding:"required"`
	SessionID   string `json:"session_id"`
	Surface     string `json:"surface"`
	PageSize    int    `json:"page_size"`
	Locale      string `json:"locale"`
	Category    string `json:"category"`
}

// RecommendedItem 是推荐响应中的一条物品。
type RecommendedItem struct {
	ItemID         string  `json:"item_id"`
	Title          string  `json:"title,omitempty"`
	Position       int     `json:"position"`
	RetrievalScore float64 `json:"retrieval_score"`
	RankScore      float64 `json:"rank_score"`
	FinalScore     float64 `json:"final_score"`
}

// RecommendResponse 推荐响应。ImpressionID 是后续点击上报的关联键。
type RecommendResponse struct {
	ImpressionID  string            `json:"impression_id"`
	SessionID     string            `json:"session_id"`
	RetrievalPath string            `json:"retrieval_path"`
	Items         []RecommendedItem `json:"items"`
}

// ClickRequest 点击上报请求。
type ClickRequest struct {
	ImpressionID string `json:"impression_id" binding:"required"`
	ItemID       string `json:"item_id" binding:"required"`
	Position     int    `json:"position"`
	DwellMs      int    `json:"dwell_ms"`
	OpenType     string `json:"open_type"`
}

// ClickResponse 点击上报响应。重复点击返回 duplicate_ignored，不是错误。
type ClickResponse struct {
	Status  string `json:"status"` // ok / duplicate_ignored
	ClickID string `json:"click_id,omitempty"`
}

// StartSessionRequest 开启会话请求。
type StartSessionRequest struct {
	AnonymousID string `json:"anonymous_id" binding:"required"`
	DeviceType  string `json:"device_type"`
	AppVersion  string `json:"app_version"`
	UserAgent   string `json:"user_agent"`
	Referrer    string `json:"referrer"`
}

// StartSessionResponse 开启会话响应。
type StartSessionResponse struct {
	SessionID string `json:"session_id"`
}

// Recommender 是在线推荐服务：组织 Pipeline 执行、落曝光账、记点击。
type Recommender struct {
	Pipe   *pipeline.Pipeline
	Ledger *ledger.Ledger
	// KV 只承载热点榜的展示缓存；冷热判定与特征均以账本为准。
	KV              core.KeyValueStore
	DefaultPageSize int
	Log             *logger.Logger
}

func invalidInput(msg string) error {
	return core.NewDomainError(core.ModuleService, core.ErrorCodeInvalidInput, msg)
}

// Recommend 执行完整推荐链路并原子落曝光账，返回带 impression_id 的响应。
// 曝光写失败时整个请求失败：没有落账的推荐不允许返回给客户端，
// 否则后续点击会对着一个不存在的 impression 上报。
func (r *Recommender) Recommend(ctx context.Context, req *RecommendRequest) (*RecommendResponse, error) {
	if req.AnonymousID == "" {
		return nil, invalidInput("service: anonymous_id is required")
	}
	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = r.DefaultPageSize
	}
	if pageSize > 100 {
		return nil, invalidInput(fmt.Sprintf("service: page_size %d exceeds limit 100", req.PageSize))
	}
	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	rctx := &core.RecommendContext{
		AnonymousID: req.AnonymousID,
		SessionID:   sessionID,
		Surface:     req.Surface,
		PageSize:    pageSize,
		Locale:      req.Locale,
		Category:    req.Category,
		ServedAt:    time.Now().UTC(),
	}

	items, err := r.Pipe.Run(ctx, rctx, nil)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, core.ErrNoCandidates
	}

	if err := r.Ledger.EnsureSession(ctx, sessionID, req.AnonymousID); err != nil {
		return nil, err
	}

	imp := &ledger.Impression{
		SessionID:   sessionID,
		AnonymousID: req.AnonymousID,
		Surface:     req.Surface,
		PageSize:    pageSize,
		Locale:      req.Locale,
		ServedAt:    rctx.ServedAt,
	}
	rows := make([]*ledger.ImpressionItem, 0, len(items))
	for i, it := range items {
		rows = append(rows, &ledger.ImpressionItem{
			Position:       i + 1,
			ItemID:         it.ID,
			RetrievalScore: it.RetrievalScore,
			RetrievalPos:   it.RetrievalPos,
			RankScore:      it.RankScore,
			FinalScore:     it.FinalScore,
		})
	}
	impressionID, err := r.Ledger.WriteImpression(ctx, imp, rows)
	if err != nil {
		return nil, err
	}

	resp := &RecommendResponse{
		ImpressionID: impressionID,
		SessionID:    sessionID,
		Items:        make([]RecommendedItem, 0, len(items)),
	}
	if lbl, ok := rctx.GetLabel("retrieval_path"); ok {
		resp.RetrievalPath = lbl.Value
	}
	for i, it := range items {
		resp.Items = append(resp.Items, RecommendedItem{
			ItemID:         it.ID,
			Title:          it.Title,
			Position:       i + 1,
			RetrievalScore: it.RetrievalScore,
			RankScore:      it.RankScore,
			FinalScore:     it.FinalScore,
		})
	}

	r.Log.Info("recommendation served",
		"anonymous_id", req.AnonymousID,
		"impression_id", impressionID,
		"retrieval_path", resp.RetrievalPath,
		"items", len(items),
	)
	return resp, nil
}

// LogClick 幂等记录点击。首次插入时顺带给热点榜缓存加一；
// 缓存失败只告警，点击账本已提交不能回滚。
func (r *Recommender) LogClick(ctx context.Context, req *ClickRequest) (*ClickResponse, error) {
	if req.ImpressionID == "" || req.ItemID == "" {
		return nil, invalidInput("service: impression_id and item_id are required")
	}
	result, err := r.Ledger.LogClick(ctx, &ledger.Click{
		ImpressionID: req.ImpressionID,
		ItemID:       req.ItemID,
		Position:     req.Position,
		DwellMs:      req.DwellMs,
		OpenType:     req.OpenType,
	})
	if err != nil {
		return nil, err
	}
	if result.Duplicate {
		return &ClickResponse{Status: "duplicate_ignored"}, nil
	}

	if r.KV != nil {
		if _, err := r.KV.ZIncrBy(ctx, trendingKey, 1, req.ItemID); err != nil {
			r.Log.Warn("trending cache increment failed", "item_id", req.ItemID, "err", err)
		}
	}
	return &ClickResponse{Status: "ok", ClickID: result.ClickID}, nil
}

// StartSession 显式开启一个会话并返回服务端生成的 session_id。
func (r *Recommender) StartSession(ctx context.Context, req *StartSessionRequest) (*StartSessionResponse, error) {
	if req.AnonymousID == "" {
		return nil, invalidInput("service: anonymous_id is required")
	}
	id, err := r.Ledger.CreateSession(ctx, &ledger.Session{
		AnonymousID: req.AnonymousID,
		DeviceType:  req.DeviceType,
		AppVersion:  req.AppVersion,
		UserAgent:   req.UserAgent,
		Referrer:    req.Referrer,
	})
	if err != nil {
		return nil, err
	}
	return &StartSessionResponse{SessionID: id}, nil
}

// History 返回用户最近点击历史；新用户拿到空列表而不是错误。
func (r *Recommender) History(ctx context.Context, anonymousID string, limit int) ([]ledger.HistoryEntry, error) {
	if anonymousID == "" {
		return nil, invalidInput("service: anonymous_id is required")
	}
	entries, err := r.Ledger.ClickHistory(ctx, anonymousID, limit)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []ledger.HistoryEntry{}
	}
	return entries, nil
}

// Trending 返回全局热点榜：优先读 KV 缓存，缓存为空则回源账本并回填。
func (r *Recommender) Trending(ctx context.Context, limit int) ([]ledger.TrendingEntry, error) {
	if limit <= 0 || limit > 50 {
		limit = 10
	}

	if r.KV != nil {
		members, err := r.KV.ZRangeWithScores(ctx, trendingKey, 0, int64(limit-1))
		if err != nil && !core.IsStoreNotFound(err) {
			r.Log.Warn("trending cache read failed", "err", err)
		}
		if len(members) > 0 {
			ids := make([]string, 0, len(members))
			for _, m := range members {
				ids = append(ids, m.Member)
			}
			titles, err := r.Ledger.Titles(ctx, ids)
			if err != nil {
				return nil, err
			}
			out := make([]ledger.TrendingEntry, 0, len(members))
			for _, m := range members {
				out = append(out, ledger.TrendingEntry{
					ItemID: m.Member,
					Title:  titles[m.Member],
					Clicks: int64(m.Score),
				})
			}
			return out, nil
		}
	}

	entries, err := r.Ledger.TrendingItems(ctx, limit)
	if err != nil {
		return nil, err
	}
	if r.KV != nil {
		for _, e := range entries {
			if err := r.KV.ZAdd(ctx, trendingKey, float64(e.Clicks), e.ItemID); err != nil {
				r.Log.Warn("trending cache backfill failed", "err", err)
				break
			}
		}
	}
	if entries == nil {
		entries = []ledger.TrendingEntry{}
	}
	return entries, nil
}
