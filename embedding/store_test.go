package embedding

import (
	"encoding/binary"
	"encoding/gob"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/rushteam/newsrec/core"
	"github.com/rushteam/newsrec/pkg/logger"
)

// writeAssets 在 dir 下写出三件套资产，向量写入前归一化。
func writeAssets(t *testing.T, dir string, ids []string, vecs []float32, dim, nlist, nprobe int) {
	t.Helper()

	for r := 0; r < len(vecs)/dim; r++ {
		Normalize(vecs[r*dim : (r+1)*dim])
	}

	idsData, err := json.Marshal(ids)
	if err != nil {
		t.Fatalf("序列化 ids 失败: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, idsFile), idsData, 0o644); err != nil {
		t.Fatalf("写 ids 失败: %v", err)
	}

	f, err := os.Create(filepath.Join(dir, embFile))
	if err != nil {
		t.Fatalf("创建矩阵文件失败: %v", err)
	}
	header := struct{ Rows, Dim uint32 }{Rows: uint32(len(ids)), Dim: uint32(dim)}
	if err := binary.Write(f, binary.LittleEndian, header); err != nil {
		t.Fatalf("写矩阵头失败: %v", err)
	}
	if err := binary.Write(f, binary.LittleEndian, vecs); err != nil {
		t.Fatalf("写矩阵体失败: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("关闭矩阵文件失败: %v", err)
	}

	idx := BuildIVF(vecs, dim, nlist, nprobe, 10)
	g, err := os.Create(filepath.Join(dir, indexFile))
	if err != nil {
		t.Fatalf("创建索引文件失败: %v", err)
	}
	if err := gob.NewEncoder(g).Encode(idx); err != nil {
		t.Fatalf("编码索引失败: %v", err)
	}
	if err := g.Close(); err != nil {
		t.Fatalf("关闭索引文件失败: %v", err)
	}
}

func TestLoad_MissingAssets(t *testing.T) {
	dir := t.TempDir()
	// 只写 ids，矩阵和索引缺失
	if err := os.WriteFile(filepath.Join(dir, idsFile), []byte(`["N1"]`), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := Load(dir, logger.Nop())
	if err == nil {
		t.Fatal("资产缺失时应当加载失败")
	}
	de := core.GetDomainError(err)
	if de == nil || de.Code != core.ErrorCodeNotFound {
		t.Fatalf("期望 NOT_FOUND 错误，实际 %v", err)
	}
	// 错误信息应列出全部缺失文件
	if !strings.Contains(de.Message, embFile) || !strings.Contains(de.Message, indexFile) {
		t.Errorf("错误信息未列出全部缺失资产: %s", de.Message)
	}
}

func TestLoad_RowCountMismatch(t *testing.T) {
	dir := t.TempDir()
	vecs := []float32{1, 0, 0, 1, 1, 1}
	writeAssets(t, dir, []string{"N1", "N2", "N3"}, vecs, 2, 1, 1)

	// 改写 ids 使行数对不上
	if err := os.WriteFile(filepath.Join(dir, idsFile), []byte(`["N1","N2"]`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(dir, logger.Nop()); err == nil {
		t.Fatal("ids 与矩阵行数不一致时应当加载失败")
	}
}

func TestSearch_MatchesBruteForce(t *testing.T) {
	dir := t.TempDir()

	// 32 个物品、8 维随机向量（固定序列，保证可复现）
	const rows, dim = 32, 8
	ids := make([]string, rows)
	vecs := make([]float32, rows*dim)
	seed := uint64(42)
	next := func() float32 {
		seed = seed*6364136223846793005 + 1442695040888963407
		return float32(seed>>33)/float32(1<<31) - 0.5
	}
	for r := 0; r < rows; r++ {
		ids[r] = "N" + string(rune('A'+r%26)) + string(rune('0'+r/26))
		for d := 0; d < dim; d++ {
			vecs[r*dim+d] = next()
		}
	}
	// nprobe 等于 nlist，保证检索是精确的，可与暴力扫描对照
	writeAssets(t, dir, ids, vecs, dim, 4, 4)

	s, err := Load(dir, logger.Nop())
	if err != nil {
		t.Fatalf("加载失败: %v", err)
	}
	if s.Len() != rows || s.Dim() != dim {
		t.Fatalf("期望 %d×%d，实际 %d×%d", rows, dim, s.Len(), s.Dim())
	}

	query := make([]float32, dim)
	for d := 0; d < dim; d++ {
		query[d] = next()
	}

	const k = 10
	got, err := s.Search(query, k)
	if err != nil {
		t.Fatalf("检索失败: %v", err)
	}
	if len(got) != k {
		t.Fatalf("期望 %d 个命中，实际 %d 个", k, len(got))
	}

	// 暴力计算全量内积做对照
	q := make([]float32, dim)
	copy(q, query)
	Normalize(q)
	type pair struct {
		id    string
		score float64
	}
	all := make([]pair, 0, rows)
	for r := 0; r < rows; r++ {
		v, ok := s.Vector(ids[r])
		if !ok {
			t.Fatalf("物品 %s 查不到向量", ids[r])
		}
		var dp float64
		for d := 0; d < dim; d++ {
			dp += float64(q[d]) * float64(v[d])
		}
		all = append(all, pair{id: ids[r], score: dp})
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].score > all[j].score })

	for i := range got {
		if got[i].ItemID != all[i].id {
			t.Errorf("第 %d 位: 期望 %s，实际 %s", i, all[i].id, got[i].ItemID)
		}
		if math.Abs(got[i].Score-all[i].score) > 1e-5 {
			t.Errorf("第 %d 位分数: 期望 %f，实际 %f", i, all[i].score, got[i].Score)
		}
	}

	// 分数降序
	for i := 1; i < len(got); i++ {
		if got[i].Score > got[i-1].Score {
			t.Errorf("命中未按分数降序: [%d]=%f > [%d]=%f", i, got[i].Score, i-1, got[i-1].Score)
		}
	}
}

func TestSearch_DimMismatch(t *testing.T) {
	dir := t.TempDir()
	vecs := []float32{1, 0, 0, 1}
	writeAssets(t, dir, []string{"N1", "N2"}, vecs, 2, 1, 1)

	s, err := Load(dir, logger.Nop())
	if err != nil {
		t.Fatalf("加载失败: %v", err)
	}
	if _, err := s.Search([]float32{1, 0, 0}, 5); err == nil {
		t.Fatal("维度不匹配的查询应当报错")
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	v := []float32{3, 4}
	Normalize(v)
	if math.Abs(float64(v[0])-0.6) > 1e-6 || math.Abs(float64(v[1])-0.8) > 1e-6 {
		t.Fatalf("归一化结果错误: %v", v)
	}
	again := []float32{v[0], v[1]}
	Normalize(again)
	if math.Abs(float64(again[0]-v[0])) > 1e-6 || math.Abs(float64(again[1]-v[1])) > 1e-6 {
		t.Errorf("归一化应当幂等: %v vs %v", again, v)
	}

	zero := []float32{0, 0, 0}
	Normalize(zero)
	for _, x := range zero {
		if x != 0 {
			t.Errorf("零向量归一化后应保持为零: %v", zero)
		}
	}
}
