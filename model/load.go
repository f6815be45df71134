package model

import (
	"os"

	"github.com/rushteam/newsrec/pkg/logger"
)

// Select 在启动时按优先级选定排序模型：GBDT → LR → 1/position 兜底。
// 产物缺失或加载失败都只降级、不报错；选型结果只在这里决定一次，
// 请求路径上拿到的是一个固定的 RankModel。
func Select(gbdtPath, lrPath string, log *logger.Logger) RankModel {
	if gbdtPath != "" {
		if _, err := os.Stat(gbdtPath); err == nil {
			m, err := LoadGBDTModel(gbdtPath)
			if err == nil {
				log.Info("ranker loaded", "model", m.Name(), "path", gbdtPath, "trees", len(m.Trees))
				return m
			}
			log.Warn("gbdt ranker failed to load, trying lr", "path", gbdtPath, "err", err)
		} else {
			log.Warn("gbdt ranker artifact not found", "path", gbdtPath)
		}
	}

	if lrPath != "" {
		if _, err := os.Stat(lrPath); err == nil {
			m, err := LoadLRModel(lrPath)
			if err == nil {
				log.Info("ranker loaded", "model", m.Name(), "path", lrPath)
				return m
			}
			log.Warn("lr ranker failed to load", "path", lrPath, "err", err)
		} else {
			log.Warn("lr ranker artifact not found", "path", lrPath)
		}
	}

	log.Warn("no ranker artifact available, serving with 1/position fallback")
	return PositionFallback{}
}
