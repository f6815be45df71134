package embedding

import (
	"math"
	"sort"
)

// IVFIndex 是倒排文件（Inverted File）结构的近邻索引：向量被划分到 Nlist 个
// 簇，检索时只扫描与查询向量最接近的 NProbe 个簇的倒排表。向量全部
// L2 归一化，因此内积即余弦相似度。
//
// 索引由离线训练任务构建并序列化（gob），服务启动时整体加载、进程生命周期内只读。
type IVFIndex struct {
	NProbe    int         // 检索时探查的簇数
	Centroids [][]float32 // 簇中心，已归一化
	Lists     [][]int32   // 每个簇的行号倒排表
}

type hit struct {
	row   int32
	score float32
}

// search 返回与 query 内积最高的至多 k 行。query 必须已归一化。
func (idx *IVFIndex) search(vecs []float32, dim int, query []float32, k int) []hit {
	if k <= 0 || len(idx.Centroids) == 0 {
		return nil
	}

	nprobe := idx.NProbe
	if nprobe <= 0 {
		nprobe = 1
	}
	if nprobe > len(idx.Centroids) {
		nprobe = len(idx.Centroids)
	}

	// 1. 选出内积最高的 nprobe 个簇
	type centroidScore struct {
		list  int
		score float32
	}
	cs := make([]centroidScore, len(idx.Centroids))
	for i, c := range idx.Centroids {
		cs[i] = centroidScore{list: i, score: dot(query, c)}
	}
	sort.Slice(cs, func(i, j int) bool { return cs[i].score > cs[j].score })

	// 2. 扫描候选簇的倒排表
	var hits []hit
	for _, c := range cs[:nprobe] {
		for _, row := range idx.Lists[c.list] {
			vec := vecs[int(row)*dim : (int(row)+1)*dim]
			hits = append(hits, hit{row: row, score: dot(query, vec)})
		}
	}

	// 3. 取 TopK（分数相同按行号稳定）
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits
}

// BuildIVF 用 k-means 构建 IVF 索引。线上服务只读索引，此函数供离线构建
// 工具与测试夹具使用。vecs 为行优先的 rows×dim 矩阵，须已归一化。
func BuildIVF(vecs []float32, dim, nlist, nprobe, iters int) *IVFIndex {
	rows := len(vecs) / dim
	if nlist <= 0 {
		nlist = 1
	}
	if nlist > rows {
		nlist = rows
	}
	if iters <= 0 {
		iters = 10
	}

	// 初始簇中心：等间隔取样
	centroids := make([][]float32, nlist)
	for i := range centroids {
		row := i * rows / nlist
		c := make([]float32, dim)
		copy(c, vecs[row*dim:(row+1)*dim])
		centroids[i] = c
	}

	assign := make([]int, rows)
	for it := 0; it < iters; it++ {
		// 分配
		for r := 0; r < rows; r++ {
			vec := vecs[r*dim : (r+1)*dim]
			best, bestScore := 0, float32(math.Inf(-1))
			for ci, c := range centroids {
				if s := dot(vec, c); s > bestScore {
					best, bestScore = ci, s
				}
			}
			assign[r] = best
		}
		// 更新
		sums := make([][]float32, nlist)
		counts := make([]int, nlist)
		for i := range sums {
			sums[i] = make([]float32, dim)
		}
		for r := 0; r < rows; r++ {
			ci := assign[r]
			vec := vecs[r*dim : (r+1)*dim]
			for d := 0; d < dim; d++ {
				sums[ci][d] += vec[d]
			}
			counts[ci]++
		}
		for ci := range centroids {
			if counts[ci] == 0 {
				continue // 空簇保留旧中心
			}
			Normalize(sums[ci])
			centroids[ci] = sums[ci]
		}
	}

	lists := make([][]int32, nlist)
	for r := 0; r < rows; r++ {
		lists[assign[r]] = append(lists[assign[r]], int32(r))
	}

	return &IVFIndex{NProbe: nprobe, Centroids: centroids, Lists: lists}
}

func dot(a, b []float32) float32 {
	var s float32
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}

// Normalize 原地做 L2 归一化；零向量保持不变。归一化是幂等的，
// 加载与查询时的防御性重归一化不会改变已归一化的向量。
func Normalize(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	inv := float32(1 / math.Sqrt(sum))
	for i := range v {
		v[i] *= inv
	}
}
