package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// LLM
	LLMAPIKey     string
	LLMEndpoint   string
	FilterModel   string // 安価な一次フィルタ用モデル
	AnalysisModel string // 深層分析用モデル
	LLMTimeout    time.Duration

	// Scrape
	SourcesConfigPath string
	ScrapeTimeout     time.Duration
	ScrapeMaxSize     int64
	CooldownHours     int

	// Analysis
	BatchLimit              int // 分析バッチ1回あたりの処理上限
	HighConfidenceThreshold int

	// Rate Limit
	RateLimitGeneral int
	RateLimitScrape  int

	// Server
	ServerPort string

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
// LLM_API_KEYは必須ではない：未設定の場合、分析ステージは警告付きで
// スキップされ、スクレイプと閲覧機能は動作し続ける。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.LLMAPIKey = os.Getenv("LLM_API_KEY")
	cfg.LLMEndpoint = getEnvString("LLM_ENDPOINT", "https://api.openai.com/v1/chat/completions")
	cfg.FilterModel = getEnvString("FILTER_MODEL", "gpt-4o-mini")
	cfg.AnalysisModel = getEnvString("ANALYSIS_MODEL", "gpt-4o")
	cfg.LLMTimeout = getEnvDuration("LLM_TIMEOUT", 60*time.Second)

	cfg.SourcesConfigPath = getEnvString("SOURCES_CONFIG", "sources.yaml")
	cfg.ScrapeTimeout = getEnvDuration("SCRAPE_TIMEOUT", 15*time.Second)
	cfg.ScrapeMaxSize = getEnvInt64("SCRAPE_MAX_SIZE", 5242880)
	cfg.CooldownHours = getEnvInt("COOLDOWN_HOURS", 24)

	cfg.BatchLimit = getEnvInt("BATCH_LIMIT", 20)
	cfg.HighConfidenceThreshold = getEnvInt("HIGH_CONFIDENCE_THRESHOLD", 70)

	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitScrape = getEnvInt("RATE_LIMIT_SCRAPE", 10)

	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvInt64(key string, defaultVal int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
