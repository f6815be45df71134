package embedding

import (
	"encoding/binary"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rushteam/newsrec/core"
	"github.com/rushteam/newsrec/pkg/logger"
)

// 三个同目录资产由离线训练任务产出，布局对服务侧透明：
//   - item_ids.json:  物品 ID 数组（JSON），下标即矩阵行号
//   - embeddings.f32: 行优先 float32 矩阵，头部为两个 uint32（rows、dim，小端）
//   - ivf.index:      gob 序列化的 IVFIndex
const (
	idsFile   = "item_ids.json"
	embFile   = "embeddings.f32"
	indexFile = "ivf.index"
)

// Store 是只读的物品向量索引：ID → 归一化向量，以及 TopK 内积检索。
// 启动时一次性加载、进程内共享，没有写者，因此无需加锁；资产更新靠重启。
type Store struct {
	ids    []string
	vecs   []float32 // rows×dim，行优先，已归一化
	dim    int
	id2row map[string]int
	index  *IVFIndex
}

// Load 读取资产目录并构建 Store。任一资产缺失立即失败，错误里列出全部缺失路径。
func Load(dir string, log *logger.Logger) (*Store, error) {
	idsPath := filepath.Join(dir, idsFile)
	embPath := filepath.Join(dir, embFile)
	indexPath := filepath.Join(dir, indexFile)

	var missing []string
	for _, p := range []string{idsPath, embPath, indexPath} {
		if _, err := os.Stat(p); err != nil {
			missing = append(missing, p)
		}
	}
	if len(missing) > 0 {
		return nil, core.NewDomainError(core.ModuleEmbedding, core.ErrorCodeNotFound,
			fmt.Sprintf("embedding: missing retrieval assets: %s", strings.Join(missing, ", ")))
	}

	ids, err := loadIDs(idsPath)
	if err != nil {
		return nil, err
	}

	vecs, dim, err := loadMatrix(embPath)
	if err != nil {
		return nil, err
	}
	rows := len(vecs) / dim
	if rows != len(ids) {
		return nil, fmt.Errorf("embedding: %d ids but %d embedding rows", len(ids), rows)
	}

	// 资产产出时应已归一化；这里防御性重归一化（幂等）
	for r := 0; r < rows; r++ {
		Normalize(vecs[r*dim : (r+1)*dim])
	}

	index, err := loadIndex(indexPath)
	if err != nil {
		return nil, err
	}
	for _, list := range index.Lists {
		for _, row := range list {
			if int(row) < 0 || int(row) >= rows {
				return nil, fmt.Errorf("embedding: index references row %d out of %d", row, rows)
			}
		}
	}

	id2row := make(map[string]int, len(ids))
	for i, id := range ids {
		id2row[id] = i
	}

	log.Info("embedding store loaded",
		"dir", dir, "items", rows, "dim", dim,
		"nlist", len(index.Centroids), "nprobe", index.NProbe)

	return &Store{ids: ids, vecs: vecs, dim: dim, id2row: id2row, index: index}, nil
}

func loadIDs(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("embedding: read ids: %w", err)
	}
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return nil, fmt.Errorf("embedding: parse ids: %w", err)
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("embedding: empty id list in %s", path)
	}
	return ids, nil
}

func loadMatrix(path string) ([]float32, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("embedding: open matrix: %w", err)
	}
	defer f.Close()

	var header struct{ Rows, Dim uint32 }
	if err := binary.Read(f, binary.LittleEndian, &header); err != nil {
		return nil, 0, fmt.Errorf("embedding: read matrix header: %w", err)
	}
	if header.Rows == 0 || header.Dim == 0 {
		return nil, 0, fmt.Errorf("embedding: matrix %s has zero rows or dim", path)
	}

	vecs := make([]float32, int(header.Rows)*int(header.Dim))
	if err := binary.Read(f, binary.LittleEndian, vecs); err != nil {
		return nil, 0, fmt.Errorf("embedding: read matrix body: %w", err)
	}
	return vecs, int(header.Dim), nil
}

func loadIndex(path string) (*IVFIndex, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("embedding: open index: %w", err)
	}
	defer f.Close()

	var idx IVFIndex
	if err := gob.NewDecoder(f).Decode(&idx); err != nil {
		return nil, fmt.Errorf("embedding: decode index: %w", err)
	}
	if len(idx.Centroids) == 0 {
		return nil, fmt.Errorf("embedding: index %s has no centroids", path)
	}
	return &idx, nil
}

// Len 返回索引内物品数。
func (s *Store) Len() int { return len(s.ids) }

// Dim 返回向量维度。
func (s *Store) Dim() int { return s.dim }

// Vector 返回物品的归一化向量；调用方不得修改返回的切片。
func (s *Store) Vector(itemID string) ([]float32, bool) {
	row, ok := s.id2row[itemID]
	if !ok {
		return nil, false
	}
	return s.vecs[row*s.dim : (row+1)*s.dim], true
}

// Hit 是一次检索命中：物品 ID 与内积分数（单位向量内积 = 余弦相似度）。
type Hit struct {
	ItemID string
	Score  float64
}

// Search 返回与 query 最相似的至多 k 个物品，按分数降序。
// query 会被拷贝并防御性归一化，不会被修改。
func (s *Store) Search(query []float32, k int) ([]Hit, error) {
	if len(query) != s.dim {
		return nil, fmt.Errorf("embedding: query dim %d, index dim %d", len(query), s.dim)
	}
	q := make([]float32, s.dim)
	copy(q, query)
	Normalize(q)

	hits := s.index.search(s.vecs, s.dim, q, k)
	out := make([]Hit, 0, len(hits))
	for _, h := range hits {
		out = append(out, Hit{ItemID: s.ids[int(h.row)], Score: float64(h.score)})
	}
	return out, nil
}
