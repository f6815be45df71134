package store

import (
	"context"
	"testing"

	"github.com/rushteam/newsrec/core"
)

func TestMemoryStore_GetSetDelete(t *testing.T) {
	m := NewMemoryStore()
	defer m.Close()
	ctx := context.Background()

	if _, err := m.Get(ctx, "missing"); !core.IsStoreNotFound(err) {
		t.Fatalf("缺失 key 期望 ErrStoreNotFound，实际 %v", err)
	}

	if err := m.Set(ctx, "k", []byte("v")); err != nil {
		t.Fatal(err)
	}
	got, err := m.Get(ctx, "k")
	if err != nil || string(got) != "v" {
		t.Fatalf("期望 v，实际 %q err=%v", got, err)
	}

	if err := m.Delete(ctx, "k"); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Get(ctx, "k"); !core.IsStoreNotFound(err) {
		t.Fatalf("删除后应查不到，实际 %v", err)
	}
}

func TestMemoryStore_ZSetOrdering(t *testing.T) {
	m := NewMemoryStore()
	defer m.Close()
	ctx := context.Background()

	for _, add := range []struct {
		member string
		score  float64
	}{
		{"N1", 3}, {"N2", 1}, {"N3", 2},
	} {
		if err := m.ZAdd(ctx, "trend", add.score, add.member); err != nil {
			t.Fatal(err)
		}
	}

	got, err := m.ZRange(ctx, "trend", 0, -1)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"N1", "N3", "N2"} // 分数降序
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("第 %d 位: 期望 %s，实际 %s", i, want[i], got[i])
		}
	}

	// 区间截断
	top, err := m.ZRangeWithScores(ctx, "trend", 0, 1)
	if err != nil || len(top) != 2 {
		t.Fatalf("期望 2 条，实际 %v err=%v", top, err)
	}
	if top[0].Member != "N1" || top[0].Score != 3 {
		t.Errorf("榜首错误: %+v", top[0])
	}
}

func TestMemoryStore_ZIncrBy(t *testing.T) {
	m := NewMemoryStore()
	defer m.Close()
	ctx := context.Background()

	v, err := m.ZIncrBy(ctx, "trend", 1, "N1")
	if err != nil || v != 1 {
		t.Fatalf("首次加一: %f err=%v", v, err)
	}
	v, err = m.ZIncrBy(ctx, "trend", 2, "N1")
	if err != nil || v != 3 {
		t.Fatalf("累计应为 3: %f err=%v", v, err)
	}

	// 同分时按成员名升序，保证榜单确定性
	if _, err := m.ZIncrBy(ctx, "trend", 3, "N0"); err != nil {
		t.Fatal(err)
	}
	got, err := m.ZRange(ctx, "trend", 0, -1)
	if err != nil {
		t.Fatal(err)
	}
	if got[0] != "N0" || got[1] != "N1" {
		t.Errorf("同分排序应按成员名: %v", got)
	}
}

func TestMemoryStore_EmptyZSet(t *testing.T) {
	m := NewMemoryStore()
	defer m.Close()

	got, err := m.ZRangeWithScores(context.Background(), "nothing", 0, -1)
	if err != nil || len(got) != 0 {
		t.Fatalf("空 zset 应得空结果: %v err=%v", got, err)
	}
}
