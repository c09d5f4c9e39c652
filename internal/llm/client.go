// Package llm はOpenAI互換のチャット補完APIクライアントを提供する。
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ChatClient はチャット補完のインターフェースを定義する。
// フィルタ・抽出・分析の各ステージが使用する。
type ChatClient interface {
	// Complete はシステムプロンプトとユーザープロンプトを送信し、
	// アシスタントの応答テキストを返す。
	Complete(ctx context.Context, model, systemPrompt, userPrompt string) (string, error)
}

// Client はOpenAI互換エンドポイントに対するChatClientの実装。
type Client struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
}

// コンパイル時のインターフェース実装チェック
var _ ChatClient = (*Client)(nil)

// NewClient はClientを生成する。
func NewClient(endpoint, apiKey string, timeout time.Duration) *Client {
	return &Client{
		endpoint: endpoint,
		apiKey:   apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// chatResponse はチャット補完APIの応答のうち必要な部分のみを表す。
type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Complete はシステムプロンプトとユーザープロンプトを送信し、
// アシスタントの応答テキストを返す。
func (c *Client) Complete(ctx context.Context, model, systemPrompt, userPrompt string) (string, error) {
	if c.apiKey == "" || c.endpoint == "" || model == "" {
		return "", fmt.Errorf("チャットクライアントの設定が不足しています")
	}

	body, err := json.Marshal(map[string]any{
		"model": model,
		"messages": []map[string]string{
			{"role": "system", "content": systemPrompt},
			{"role": "user", "content": userPrompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("リクエストボディの構築に失敗しました: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("リクエストの生成に失敗しました: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("チャット補完リクエストに失敗しました: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("チャット補完APIがエラーを返しました %s: %s",
			resp.Status, strings.TrimSpace(string(payload)))
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("応答のデコードに失敗しました: %w", err)
	}

	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("応答に選択肢が含まれていません")
	}

	return parsed.Choices[0].Message.Content, nil
}
