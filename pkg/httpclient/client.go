package httpclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// maxErrorBodyBytes はStatusErrorに保持するレスポンスボディの上限バイト数。
const maxErrorBodyBytes = 4 << 10

// Client はバックエンドAPIを呼び出すJSON用HTTPクライアント。
// ベースURLは絶対URL（例: "https://api.example.com"）か、
// オリジン相対パス（例: "/api"）のいずれかを取る。
type Client struct {
	// httpClient は内部で使用するHTTPクライアント。
	httpClient *http.Client
	// baseURL は接続先APIのベースURL。末尾のスラッシュは除去済み。
	baseURL string
}

// Option はClientの生成オプション。
type Option func(*Client)

// WithTimeout はリクエスト全体のタイムアウトを設定する。
// 0を指定するとタイムアウトなしになる。
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		hc := *c.httpClient
		hc.Timeout = d
		c.httpClient = &hc
	}
}

// WithHTTPClient は内部で使用するHTTPクライアントを差し替える。
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// New は新しいHTTPクライアントを生成する。
// デフォルトではタイムアウト30秒で、リダイレクトは追跡しない。
// 3xxレスポンスもStatusErrorとして返る。
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			CheckRedirect: func(_ *http.Request, _ []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// StatusError はサーバーが2xx以外のステータスを返したことを表す。
type StatusError struct {
	// StatusCode はレスポンスのHTTPステータスコード。
	StatusCode int
	// Body はレスポンスボディの先頭部分。
	Body string
}

// Error はエラーメッセージを返す。
func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTPエラー: status=%d, body=%s", e.StatusCode, e.Body)
}

// GetJSON は指定パスにGETリクエストを送信する。
// レスポンスボディをresultにデシリアライズする。
func (c *Client) GetJSON(ctx context.Context, path string, result any) error {
	return c.doJSON(ctx, http.MethodGet, path, result)
}

// doJSON はJSON形式のHTTPリクエストを実行する共通処理。
func (c *Client) doJSON(ctx context.Context, method, path string, result any) error {
	url, err := c.resolveURL(ctx, path)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return fmt.Errorf("HTTPリクエストの作成に失敗: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	// コンテキストに載っている資格情報（Cookie）を送信する
	if cookies, ok := ctx.Value(contextKeyCookies).([]*http.Cookie); ok {
		for _, cookie := range cookies {
			req.AddCookie(cookie)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTPリクエストの送信に失敗: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return &StatusError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("レスポンスボディのデシリアライズに失敗: %w", err)
		}
	}
	return nil
}

// resolveURL はベースURLとパスから送信先URLを組み立てる。
// オリジン相対のベースURLはコンテキストのオリジンで解決する。
func (c *Client) resolveURL(ctx context.Context, path string) (string, error) {
	base := c.baseURL
	if base == "" || strings.HasPrefix(base, "/") {
		origin, _ := ctx.Value(contextKeyOrigin).(string)
		if origin == "" {
			return "", fmt.Errorf("オリジン相対のベースURLを解決できません: base=%q", c.baseURL)
		}
		base = strings.TrimRight(origin, "/") + base
	}
	return base + path, nil
}

// contextKey はコンテキストキーの型。
type contextKey string

const (
	// contextKeyCookies はリクエストに付与するCookieを格納するためのキー。
	contextKeyCookies contextKey = "cookies"
	// contextKeyOrigin はオリジン相対URLの解決に使うオリジンを格納するためのキー。
	contextKeyOrigin contextKey = "origin"
)

// WithCookies はコンテキストに資格情報としてのCookieを設定する。
// ブラウザの credentials: 'include' と同様に、設定したCookieが送信される。
func WithCookies(ctx context.Context, cookies []*http.Cookie) context.Context {
	return context.WithValue(ctx, contextKeyCookies, cookies)
}

// WithOrigin はコンテキストにオリジン（例: "https://app.example.com"）を設定する。
func WithOrigin(ctx context.Context, origin string) context.Context {
	return context.WithValue(ctx, contextKeyOrigin, origin)
}
