package feature

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rushteam/newsrec/core"
	"github.com/rushteam/newsrec/model"
)

// fakeLedger 是内存账本读取桩。
type fakeLedger struct {
	clicks   int64
	ingested map[string]time.Time
	titles   map[string]string
	failWith error
}

func (f *fakeLedger) ClickCount(context.Context, string) (int64, error) {
	if f.failWith != nil {
		return 0, f.failWith
	}
	return f.clicks, nil
}

func (f *fakeLedger) ItemIngestedAt(_ context.Context, ids []string) (map[string]time.Time, error) {
	out := make(map[string]time.Time)
	for _, id := range ids {
		if ts, ok := f.ingested[id]; ok {
			out[id] = ts
		}
	}
	return out, nil
}

func (f *fakeLedger) Titles(_ context.Context, ids []string) (map[string]string, error) {
	out := make(map[string]string)
	for _, id := range ids {
		if title, ok := f.titles[id]; ok {
			out[id] = title
		}
	}
	return out, nil
}

func TestEnrichNode_WritesFeatureRow(t *testing.T) {
	servedAt := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	led := &fakeLedger{
		clicks: 7,
		ingested: map[string]time.Time{
			"N1": servedAt.Add(-36 * time.Hour),
		},
		titles: map[string]string{"N1": "Fed raises interest rates"},
	}

	it := core.NewItem("N1")
	it.RetrievalScore = 0.83
	it.RetrievalPos = 2

	node := &EnrichNode{Ledger: led}
	rctx := &core.RecommendContext{AnonymousID: "u1", ServedAt: servedAt}
	out, err := node.Process(context.Background(), rctx, []*core.Item{it})
	if err != nil {
		t.Fatalf("特征补全失败: %v", err)
	}

	got := out[0]
	wantFeatures := map[string]float64{
		model.FeatureRetrievalScore: 0.83,
		model.FeaturePosition:       2,
		model.FeatureIsWarmUser:     1,
		model.FeatureUserClickCount: 7,
		model.FeatureItemAgeHours:   36,
	}
	for k, want := range wantFeatures {
		if got.Features[k] != want {
			t.Errorf("特征 %s: 期望 %f，实际 %f", k, want, got.Features[k])
		}
	}
	if got.Title != "Fed raises interest rates" {
		t.Errorf("标题未补全: %q", got.Title)
	}
}

func TestEnrichNode_ColdUserAndUnknownItem(t *testing.T) {
	led := &fakeLedger{clicks: 0}
	it := core.NewItem("N9") // 无入库时间也无标题
	it.RetrievalPos = 1

	node := &EnrichNode{Ledger: led}
	out, err := node.Process(context.Background(), &core.RecommendContext{AnonymousID: "u2"}, []*core.Item{it})
	if err != nil {
		t.Fatal(err)
	}

	got := out[0]
	if got.Features[model.FeatureIsWarmUser] != 0 {
		t.Errorf("零点击用户 is_warm_user 应为 0，实际 %f", got.Features[model.FeatureIsWarmUser])
	}
	// 入库时间未知时 item_age_hours 取 0
	if got.Features[model.FeatureItemAgeHours] != 0 {
		t.Errorf("未知物品 item_age_hours 应为 0，实际 %f", got.Features[model.FeatureItemAgeHours])
	}
}

func TestEnrichNode_PropagatesLedgerError(t *testing.T) {
	led := &fakeLedger{failWith: errors.New("ledger down")}
	node := &EnrichNode{Ledger: led}
	it := core.NewItem("N1")
	if _, err := node.Process(context.Background(), &core.RecommendContext{AnonymousID: "u1"}, []*core.Item{it}); err == nil {
		t.Fatal("账本读取失败应向上传播")
	}
}

func TestEnrichNode_EmptyInput(t *testing.T) {
	node := &EnrichNode{Ledger: &fakeLedger{}}
	out, err := node.Process(context.Background(), &core.RecommendContext{}, nil)
	if err != nil || len(out) != 0 {
		t.Fatalf("空输入应原样通过: out=%v err=%v", out, err)
	}
}
