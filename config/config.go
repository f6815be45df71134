package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ServerConfig HTTP 服务配置。
type ServerConfig struct {
	Addr string `yaml:"addr"`
	Mode string `yaml:"mode"` // debug / release
}

// DatabaseConfig 账本数据库配置。
type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

// RedisConfig 热点榜缓存配置；Addr 为空时退化为进程内存存储。
type RedisConfig struct {
	Addr string `yaml:"addr"`
	DB   int    `yaml:"db"`
}

// AssetsConfig 离线产出的资产路径。
type AssetsConfig struct {
	// EmbeddingDir 下应有 item_ids.json / embeddings.f32 / ivf.index 三件套。
	EmbeddingDir string `yaml:"embedding_dir"`
	GBDTModel    string `yaml:"gbdt_model"`
	LRModel      string `yaml:"lr_model"`
}

// RecommendConfig 推荐链路行为参数。
type RecommendConfig struct {
	DefaultPageSize int `yaml:"default_page_size"`
	// WarmMinClicks 为热路径的最低历史点击数。
	WarmMinClicks int `yaml:"warm_min_clicks"`
	// RecentK 为构建用户向量所用的最近点击条数。
	RecentK int `yaml:"recent_k"`
	// CandidateTopK 为向量检索的候选规模下限。
	CandidateTopK int `yaml:"candidate_top_k"`
	// ColdIDPrefix 非空时冷路径只取此前缀的物品（如 "N"）。
	ColdIDPrefix string `yaml:"cold_id_prefix"`
	// Diversity 重排参数；0 表示关闭惩罚。
	DiversityLambda float64 `yaml:"diversity_lambda"`
	PenaltyCap      float64 `yaml:"penalty_cap"`
	// FilterRules 为 CEL 过滤规则表达式，命中即丢弃候选。
	FilterRules []string `yaml:"filter_rules"`
}

// Config 为进程级全量配置。
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Assets    AssetsConfig    `yaml:"assets"`
	Recommend RecommendConfig `yaml:"recommend"`
}

// Default 返回可直接本地起服务的缺省配置。
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr: ":8090",
			Mode: "release",
		},
		Database: DatabaseConfig{
			DSN: "host=localhost user=newsrec password=newsrec dbname=newsrec port=5432 sslmode=disable",
		},
		Assets: AssetsConfig{
			EmbeddingDir: "assets/embedding",
			GBDTModel:    "assets/model/gbdt.json",
			LRModel:      "assets/model/lr.json",
		},
		Recommend: RecommendConfig{
			DefaultPageSize: 10,
			WarmMinClicks:   1,
			RecentK:         5,
			CandidateTopK:   200,
			ColdIDPrefix:    "",
			DiversityLambda: 0.10,
			PenaltyCap:      0.30,
		},
	}
}

// Load 读取 yaml 配置并叠加环境变量覆盖。path 为空时只用缺省值。
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv 叠加部署环境常用的覆盖项，便于容器里不落配置文件。
func (c *Config) applyEnv() {
	if v := os.Getenv("NEWSREC_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("NEWSREC_DB_DSN"); v != "" {
		c.Database.DSN = v
	}
	if v := os.Getenv("NEWSREC_REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("NEWSREC_EMBEDDING_DIR"); v != "" {
		c.Assets.EmbeddingDir = v
	}
}

func (c *Config) validate() error {
	if c.Recommend.DefaultPageSize <= 0 {
		return fmt.Errorf("config: default_page_size must be positive, got %d", c.Recommend.DefaultPageSize)
	}
	if c.Recommend.RecentK <= 0 {
		return fmt.Errorf("config: recent_k must be positive, got %d", c.Recommend.RecentK)
	}
	if c.Recommend.DiversityLambda < 0 || c.Recommend.PenaltyCap < 0 {
		return fmt.Errorf("config: diversity_lambda and penalty_cap must be non-negative")
	}
	return nil
}
