package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rushteam/newsrec/config"
	"github.com/rushteam/newsrec/core"
	"github.com/rushteam/newsrec/embedding"
	"github.com/rushteam/newsrec/feature"
	"github.com/rushteam/newsrec/filter"
	"github.com/rushteam/newsrec/ledger"
	"github.com/rushteam/newsrec/model"
	"github.com/rushteam/newsrec/pipeline"
	"github.com/rushteam/newsrec/pkg/logger"
	"github.com/rushteam/newsrec/rank"
	"github.com/rushteam/newsrec/recall"
	"github.com/rushteam/newsrec/rerank"
	"github.com/rushteam/newsrec/server"
	"github.com/rushteam/newsrec/service"
	"github.com/rushteam/newsrec/store"
)

func main() {
	configPath := flag.String("config", "", "yaml 配置文件路径，缺省使用内置配置")
	migrate := flag.Bool("migrate", false, "启动前执行建表")
	flag.Parse()

	if err := run(*configPath, *migrate); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configPath string, migrate bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	log, err := logger.New(cfg.Server.Mode)
	if err != nil {
		return err
	}
	defer log.Sync()

	db, err := ledger.Open(cfg.Database.DSN)
	if err != nil {
		return err
	}
	if migrate {
		if err := ledger.AutoMigrate(db); err != nil {
			return err
		}
	}
	led := ledger.New(db, log)

	embStore, err := embedding.Load(cfg.Assets.EmbeddingDir, log)
	if err != nil {
		return err
	}
	log.Info("embedding assets loaded",
		"items", embStore.Len(), "dim", embStore.Dim())

	// 启动时一次性选模型：GBDT → LR → 位置兜底，失败逐级降级。
	ranker := model.Select(cfg.Assets.GBDTModel, cfg.Assets.LRModel, log)
	log.Info("rank model selected", "model", ranker.Name())

	// 热点榜缓存：配了 redis 用 redis，没配走进程内存。
	var kv core.KeyValueStore
	if cfg.Redis.Addr != "" {
		rs, err := store.NewRedisStore(cfg.Redis.Addr, cfg.Redis.DB)
		if err != nil {
			return err
		}
		kv = rs
	} else {
		kv = store.NewMemoryStore()
	}
	defer kv.Close()

	var filters []filter.Filter
	for _, expr := range cfg.Recommend.FilterRules {
		rf, err := filter.NewRuleFilter(expr)
		if err != nil {
			return fmt.Errorf("compile filter rule %q: %w", expr, err)
		}
		filters = append(filters, rf)
	}

	pipe := &pipeline.Pipeline{Nodes: []pipeline.Node{
		&recall.Engine{
			Warm: &recall.Embedding{
				Store:   embStore,
				History: led,
				RecentK: cfg.Recommend.RecentK,
				TopK:    cfg.Recommend.CandidateTopK,
			},
			Cold: &recall.Random{
				Catalog:  led,
				IDPrefix: cfg.Recommend.ColdIDPrefix,
			},
			History:       led,
			Log:           log,
			WarmMinClicks: cfg.Recommend.WarmMinClicks,
		},
		&filter.Node{Filters: filters},
		&feature.EnrichNode{Ledger: led},
		&rank.ModelNode{Model: ranker, Log: log},
		&rerank.Diversity{
			Lambda:     cfg.Recommend.DiversityLambda,
			PenaltyCap: cfg.Recommend.PenaltyCap,
		},
		&rerank.TopN{},
	}}

	svc := &service.Recommender{
		Pipe:            pipe,
		Ledger:          led,
		KV:              kv,
		DefaultPageSize: cfg.Recommend.DefaultPageSize,
		Log:             log,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	router := server.NewRouter(svc, cfg.Server.Mode)
	return server.New(cfg.Server.Addr, router, log).Run(ctx)
}
