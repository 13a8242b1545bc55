package suggest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"campus-access/pkg/logging"
)

// HTTPConfig OpenAI 兼容接口配置
type HTTPConfig struct {
	Endpoint string        `yaml:"endpoint"`
	APIKey   string        `yaml:"-"`
	Model    string        `yaml:"model"`
	Timeout  time.Duration `yaml:"timeout"`
}

// HTTPSuggester 通过 chat completions 接口推荐楼栋
type HTTPSuggester struct {
	cfg    HTTPConfig
	client *http.Client
	log    *logging.Logger
}

var _ Suggester = (*HTTPSuggester)(nil)

// NewHTTPSuggester 创建远程推荐器
func NewHTTPSuggester(cfg HTTPConfig, log *logging.Logger) *HTTPSuggester {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if log == nil {
		log = logging.Default("suggest")
	}
	return &HTTPSuggester{cfg: cfg, client: &http.Client{Timeout: cfg.Timeout}, log: log}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Suggest 调用远程模型；任何传输错误、非 2xx 或无法识别的回答都返回 ErrExternalService
func (s *HTTPSuggester) Suggest(ctx context.Context, justification string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model:    s.cfg.Model,
		Messages: []chatMessage{{Role: "user", Content: Prompt(justification)}},
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrExternalService, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrExternalService, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.cfg.APIKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		s.log.WithContext(ctx).WithError(err).Warn("Suggestion request failed")
		return "", fmt.Errorf("%w: %v", ErrExternalService, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrExternalService, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		s.log.WithContext(ctx).Warn("Suggestion service returned error", "status", resp.StatusCode)
		return "", fmt.Errorf("%w: status %d", ErrExternalService, resp.StatusCode)
	}

	var parsed chatResponse
	if err := json.Unmarshal(data, &parsed); err != nil || len(parsed.Choices) == 0 {
		return "", fmt.Errorf("%w: malformed response", ErrExternalService)
	}
	answer := strings.TrimSpace(parsed.Choices[0].Message.Content)
	building, ok := Normalize(answer)
	if !ok {
		return "", fmt.Errorf("%w: unexpected answer %q", ErrExternalService, answer)
	}
	return building, nil
}
