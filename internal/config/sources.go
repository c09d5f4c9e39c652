// Package config はアプリケーション設定の読み込みを提供する。
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// SourcesConfig は監視対象ソースの宣言的設定を保持する。
// 環境変数と異なり、ソースの構成はYAMLファイルで管理する。
type SourcesConfig struct {
	HackerNews  HackerNewsConfig   `yaml:"hackernews"`
	Feeds       []FeedSourceConfig `yaml:"feeds"`
	IndieHacker IndieHackersConfig `yaml:"indiehackers"`
}

// HackerNewsConfig はHacker Newsソースの設定。
type HackerNewsConfig struct {
	Enabled  bool     `yaml:"enabled"`
	Keywords []string `yaml:"keywords"`   // Algolia検索キーワード
	MinScore int      `yaml:"min_score"`  // この閾値未満のストーリーは取得しない
	MaxItems int      `yaml:"max_items"`  // 1回の実行あたりの取得上限
}

// FeedSourceConfig はRSS/Atomフィードソースの設定。
// MediumのタグフィードやDiscourseフォーラムのlatest.rssなどを想定する。
type FeedSourceConfig struct {
	Name     string `yaml:"name"`     // ソース名（例: "medium_startups"）
	Type     string `yaml:"type"`     // medium, discourse, rss
	URL      string `yaml:"url"`      // フィードURL
	Enabled  bool   `yaml:"enabled"`
	MaxItems int    `yaml:"max_items"`
}

// IndieHackersConfig はIndie Hackersソースの設定。
type IndieHackersConfig struct {
	Enabled  bool     `yaml:"enabled"`
	Groups   []string `yaml:"groups"` // 巡回するグループのスラッグ
	MaxItems int      `yaml:"max_items"`
}

// LoadSources は指定パスのYAMLファイルからソース設定を読み込む。
// ファイルが存在しない場合は空の設定を返しエラーにしない
// （ソース未構成でもAPIサーバーは起動できる）。
func LoadSources(path string) (*SourcesConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &SourcesConfig{}, nil
		}
		return nil, fmt.Errorf("failed to read sources config: %w", err)
	}

	cfg := &SourcesConfig{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse sources config: %w", err)
	}

	return cfg, nil
}
