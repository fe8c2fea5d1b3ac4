package httpclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HeaderRequestID はリクエストIDを伝播するヘッダー名。
const HeaderRequestID = "X-Request-Id"

// defaultTimeout はクライアントのデフォルトタイムアウト。
const defaultTimeout = 30 * time.Second

// Client はオリジン通信用のHTTPクライアント。
// 全リクエストに付与する固定ヘッダー（オリジン保護の共有シークレットなど）を持つ。
type Client struct {
	// httpClient は内部で使用するHTTPクライアント。
	httpClient *http.Client
	// baseURL は接続先オリジンのベースURL。
	baseURL string
	// headers は全リクエストに付与する固定ヘッダー。
	headers http.Header
}

// Option はClientの設定を変更する関数。
type Option func(*Client)

// WithHeader は全リクエストに付与する固定ヘッダーを追加する。名前が空の場合は何もしない。
func WithHeader(name, value string) Option {
	return func(c *Client) {
		if name == "" {
			return
		}
		c.headers.Set(name, value)
	}
}

// WithTimeout はリクエストのタイムアウトを設定する。
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithTransport は下位のトランスポートを差し替える。
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) {
		c.httpClient.Transport = rt
	}
}

// New は新しいHTTPクライアントを生成する。
// baseURLには接続先オリジンのベースURL（例: "http://localhost:3000"）を指定する。
// リダイレクトは追従せず、オリジンの応答をそのまま返す。
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{
			Timeout: defaultTimeout,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		baseURL: baseURL,
		headers: http.Header{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL は接続先オリジンのベースURLを返す。
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Do はベースURLからの相対パスにリクエストを送信する。
// headerの値をコピーした後に固定ヘッダーで上書きするため、呼び出し元は固定ヘッダーを偽装できない。
// 呼び出し元はレスポンスボディを閉じる必要がある。
func (c *Client) Do(ctx context.Context, method, path string, header http.Header, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストの作成に失敗: %w", err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	for k, vs := range c.headers {
		req.Header[k] = append([]string(nil), vs...)
	}

	// コンテキストからリクエストIDを伝播する
	if id, ok := ctx.Value(contextKeyRequestID).(string); ok {
		req.Header.Set(HeaderRequestID, id)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストの送信に失敗: %w", err)
	}
	return resp, nil
}

// GetJSON は指定パスにGETリクエストを送信する。
// レスポンスボディをresultにデシリアライズする。
func (c *Client) GetJSON(ctx context.Context, path string, result any) error {
	header := http.Header{}
	header.Set("Accept", "application/json")

	resp, err := c.Do(ctx, http.MethodGet, path, header, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("HTTPエラー: status=%d, body=%s", resp.StatusCode, string(respBody))
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("レスポンスボディのデシリアライズに失敗: %w", err)
		}
	}
	return nil
}

// Probe は指定パスにGETリクエストを送信し、ステータスコードを返す。
// 2xx以外でもエラーにはしない。
func (c *Client) Probe(ctx context.Context, path string) (int, error) {
	resp, err := c.Do(ctx, http.MethodGet, path, nil, nil)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}

// contextKey はコンテキストキーの型。
type contextKey string

// contextKeyRequestID はコンテキストにリクエストIDを格納するためのキー。
const contextKeyRequestID contextKey = "request_id"

// WithRequestID はコンテキストにリクエストIDを設定する。
// オリジンへの通信時にリクエストIDを伝播するために使用する。
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, contextKeyRequestID, id)
}
