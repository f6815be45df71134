package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/rushteam/newsrec/core"
	"github.com/rushteam/newsrec/ledger"
	"github.com/rushteam/newsrec/pipeline"
	"github.com/rushteam/newsrec/pkg/logger"
	"github.com/rushteam/newsrec/service"
	"github.com/rushteam/newsrec/store"
)

// fixedRecall 固定返回两条候选。
type fixedRecall struct{}

func (fixedRecall) Name() string        { return "recall.fixed" }
func (fixedRecall) Kind() pipeline.Kind { return pipeline.KindRecall }

func (fixedRecall) Process(
	_ context.Context,
	_ *core.RecommendContext,
	_ []*core.Item,
) ([]*core.Item, error) {
	a := core.NewItem("N1")
	a.RetrievalPos = 1
	b := core.NewItem("N2")
	b.RetrievalPos = 2
	return []*core.Item{a, b}, nil
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	dsn := fmt.Sprintf("file:srv_%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("打开 sqlite 失败: %v", err)
	}
	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		if sqlDB != nil {
			sqlDB.Close()
		}
	})
	if err := ledger.AutoMigrate(db); err != nil {
		t.Fatal(err)
	}
	kv := store.NewMemoryStore()
	t.Cleanup(func() { kv.Close() })

	svc := &service.Recommender{
		Pipe:            &pipeline.Pipeline{Nodes: []pipeline.Node{fixedRecall{}}},
		Ledger:          ledger.New(db, logger.Nop()),
		KV:              kv,
		DefaultPageSize: 10,
		Log:             logger.Nop(),
	}
	return NewRouter(svc, "release")
}

func doJSON(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestRecommendEndpoint(t *testing.T) {
	h := newTestRouter(t)

	w := doJSON(t, h, http.MethodPost, "/recommendations", `{"anonymous_id":"u1","surface":"home"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("期望 200，实际 %d: %s", w.Code, w.Body.String())
	}
	var resp service.RecommendResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("解析响应失败: %v", err)
	}
	if resp.ImpressionID == "" || len(resp.Items) != 2 {
		t.Errorf("响应不完整: %+v", resp)
	}
}

func TestRecommendEndpoint_MissingAnonymousID(t *testing.T) {
	h := newTestRouter(t)

	w := doJSON(t, h, http.MethodPost, "/recommendations", `{"surface":"home"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("缺 anonymous_id 期望 400，实际 %d", w.Code)
	}
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Error.Code != core.ErrorCodeInvalidInput {
		t.Errorf("期望错误码 INVALID_INPUT，实际 %q", body.Error.Code)
	}
}

func TestClickEndpoint_Lifecycle(t *testing.T) {
	h := newTestRouter(t)

	w := doJSON(t, h, http.MethodPost, "/recommendations", `{"anonymous_id":"u1"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("推荐失败: %d %s", w.Code, w.Body.String())
	}
	var rec service.RecommendResponse
	if err := json.Unmarshal(w.Body.Bytes(), &rec); err != nil {
		t.Fatal(err)
	}

	clickBody := fmt.Sprintf(`{"impression_id":%q,"item_id":"N1","position":1}`, rec.ImpressionID)
	w = doJSON(t, h, http.MethodPost, "/click", clickBody)
	if w.Code != http.StatusOK {
		t.Fatalf("点击失败: %d %s", w.Code, w.Body.String())
	}
	var clk service.ClickResponse
	if err := json.Unmarshal(w.Body.Bytes(), &clk); err != nil {
		t.Fatal(err)
	}
	if clk.Status != "ok" {
		t.Errorf("首次点击期望 ok，实际 %q", clk.Status)
	}

	// 重复点击仍是 200，状态区分
	w = doJSON(t, h, http.MethodPost, "/click", clickBody)
	if w.Code != http.StatusOK {
		t.Fatalf("重复点击不应是错误: %d", w.Code)
	}
	if err := json.Unmarshal(w.Body.Bytes(), &clk); err != nil {
		t.Fatal(err)
	}
	if clk.Status != "duplicate_ignored" {
		t.Errorf("重复点击期望 duplicate_ignored，实际 %q", clk.Status)
	}
}

func TestClickEndpoint_UnknownImpression(t *testing.T) {
	h := newTestRouter(t)
	w := doJSON(t, h, http.MethodPost, "/click", `{"impression_id":"no-such","item_id":"N1"}`)
	if w.Code != http.StatusNotFound {
		t.Fatalf("未知曝光期望 404，实际 %d: %s", w.Code, w.Body.String())
	}
}

func TestSessionHistoryTrendingEndpoints(t *testing.T) {
	h := newTestRouter(t)

	w := doJSON(t, h, http.MethodPost, "/session/start", `{"anonymous_id":"u1","device_type":"ios"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("开启会话失败: %d %s", w.Code, w.Body.String())
	}
	var sess service.StartSessionResponse
	if err := json.Unmarshal(w.Body.Bytes(), &sess); err != nil || sess.SessionID == "" {
		t.Fatalf("会话响应错误: %s err=%v", w.Body.String(), err)
	}

	w = doJSON(t, h, http.MethodGet, "/history/u1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("历史查询失败: %d", w.Code)
	}

	w = doJSON(t, h, http.MethodGet, "/trending?limit=5", "")
	if w.Code != http.StatusOK {
		t.Fatalf("热点查询失败: %d", w.Code)
	}

	w = doJSON(t, h, http.MethodGet, "/healthz", "")
	if w.Code != http.StatusOK {
		t.Fatalf("健康检查失败: %d", w.Code)
	}
}
