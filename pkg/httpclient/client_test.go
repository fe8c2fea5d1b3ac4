package httpclient

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// testPayload はテスト用のレスポンスペイロード。
type testPayload struct {
	// Name はテスト用の名前フィールド。
	Name string `json:"name"`
	// Value はテスト用の値フィールド。
	Value int `json:"value"`
}

// TestNew はNew関数でクライアントが正しく生成されることを検証する。
func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("クライアントが正常に生成されること", func(t *testing.T) {
		t.Parallel()

		client := New("http://localhost:8080")
		if client == nil {
			t.Fatal("New()がnilを返した")
		}
		if client.BaseURL() != "http://localhost:8080" {
			t.Errorf("BaseURL() = %q, want %q", client.BaseURL(), "http://localhost:8080")
		}
		if client.httpClient.Timeout != 30*time.Second {
			t.Errorf("Timeout = %v, want %v", client.httpClient.Timeout, 30*time.Second)
		}
	})

	t.Run("オプションでタイムアウトを変更できること", func(t *testing.T) {
		t.Parallel()

		client := New("http://localhost:8080", WithTimeout(5*time.Second))
		if client.httpClient.Timeout != 5*time.Second {
			t.Errorf("Timeout = %v, want %v", client.httpClient.Timeout, 5*time.Second)
		}
	})

	t.Run("名前が空の固定ヘッダーは無視されること", func(t *testing.T) {
		t.Parallel()

		client := New("http://localhost:8080", WithHeader("", "secret"))
		if len(client.headers) != 0 {
			t.Errorf("headers = %v, want empty", client.headers)
		}
	})
}

// TestDo はDo関数を検証する。
func TestDo(t *testing.T) {
	t.Parallel()

	t.Run("固定ヘッダーが呼び出し元のヘッダーを上書きすること", func(t *testing.T) {
		t.Parallel()

		var received http.Header
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			received = r.Header.Clone()
			w.WriteHeader(http.StatusNoContent)
		}))
		defer ts.Close()

		client := New(ts.URL, WithHeader("x-origin-key", "secret"))
		header := http.Header{}
		header.Set("X-Origin-Key", "forged")
		header.Set("Authorization", "Basic dXNlcjpwYXNz")

		resp, err := client.Do(context.Background(), http.MethodGet, "/api/surveys", header, nil)
		if err != nil {
			t.Fatalf("Do()でエラーが発生: %v", err)
		}
		resp.Body.Close()

		if got := received.Values("X-Origin-Key"); len(got) != 1 || got[0] != "secret" {
			t.Errorf("X-Origin-Key = %v, want [secret]", got)
		}
		if got := received.Get("Authorization"); got != "Basic dXNlcjpwYXNz" {
			t.Errorf("Authorization = %q", got)
		}
	})

	t.Run("ボディとメソッドが転送されること", func(t *testing.T) {
		t.Parallel()

		var method, body, path string
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			method = r.Method
			path = r.URL.RequestURI()
			b, _ := io.ReadAll(r.Body)
			body = string(b)
			w.WriteHeader(http.StatusCreated)
		}))
		defer ts.Close()

		client := New(ts.URL)
		resp, err := client.Do(context.Background(), http.MethodPut, "/api/entries?round=1", nil, strings.NewReader(`{"id":"1"}`))
		if err != nil {
			t.Fatalf("Do()でエラーが発生: %v", err)
		}
		resp.Body.Close()

		if resp.StatusCode != http.StatusCreated {
			t.Errorf("ステータスコード = %d, want %d", resp.StatusCode, http.StatusCreated)
		}
		if method != http.MethodPut || path != "/api/entries?round=1" || body != `{"id":"1"}` {
			t.Errorf("受信内容 = %s %s %s", method, path, body)
		}
	})

	t.Run("リダイレクトを追従しないこと", func(t *testing.T) {
		t.Parallel()

		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, "/login", http.StatusFound)
		}))
		defer ts.Close()

		client := New(ts.URL)
		resp, err := client.Do(context.Background(), http.MethodGet, "/", nil, nil)
		if err != nil {
			t.Fatalf("Do()でエラーが発生: %v", err)
		}
		resp.Body.Close()

		if resp.StatusCode != http.StatusFound {
			t.Errorf("ステータスコード = %d, want %d", resp.StatusCode, http.StatusFound)
		}
		if got := resp.Header.Get("Location"); got != "/login" {
			t.Errorf("Location = %q, want %q", got, "/login")
		}
	})
}

// TestGetJSON はGetJSON関数を検証する。
func TestGetJSON(t *testing.T) {
	t.Parallel()

	t.Run("正常にGETリクエストを送信してレスポンスを取得できること", func(t *testing.T) {
		t.Parallel()

		var method, path string
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			method = r.Method
			path = r.URL.Path
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(testPayload{Name: "get-response", Value: 42})
		}))
		defer ts.Close()

		client := New(ts.URL)
		var result testPayload

		if err := client.GetJSON(context.Background(), "/api/health", &result); err != nil {
			t.Fatalf("GetJSON()でエラーが発生: %v", err)
		}
		if method != http.MethodGet || path != "/api/health" {
			t.Errorf("リクエスト = %s %s", method, path)
		}
		if result.Name != "get-response" || result.Value != 42 {
			t.Errorf("result = %+v", result)
		}
	})

	t.Run("サーバーが404を返した場合にエラーが返ること", func(t *testing.T) {
		t.Parallel()

		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"error":"not found"}`))
		}))
		defer ts.Close()

		client := New(ts.URL)
		var result testPayload

		if err := client.GetJSON(context.Background(), "/api/missing", &result); err == nil {
			t.Fatal("GetJSON()がエラーを返すべきだが、nilが返った")
		}
	})

	t.Run("不正なJSONレスポンスでエラーが返ること", func(t *testing.T) {
		t.Parallel()

		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{invalid json}`))
		}))
		defer ts.Close()

		client := New(ts.URL)
		var result testPayload

		if err := client.GetJSON(context.Background(), "/api/test", &result); err == nil {
			t.Fatal("GetJSON()がエラーを返すべきだが、nilが返った")
		}
	})

	t.Run("接続できないサーバーに対してエラーが返ること", func(t *testing.T) {
		t.Parallel()

		client := New("http://127.0.0.1:1")
		var result testPayload

		if err := client.GetJSON(context.Background(), "/api/test", &result); err == nil {
			t.Fatal("GetJSON()がエラーを返すべきだが、nilが返った")
		}
	})

	t.Run("キャンセルされたコンテキストでエラーが返ること", func(t *testing.T) {
		t.Parallel()

		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			json.NewEncoder(w).Encode(testPayload{Name: "response", Value: 1})
		}))
		defer ts.Close()

		client := New(ts.URL)
		ctx, cancel := context.WithCancel(context.Background())
		cancel() // 即座にキャンセル

		var result testPayload
		if err := client.GetJSON(ctx, "/api/test", &result); err == nil {
			t.Fatal("GetJSON()がエラーを返すべきだが、nilが返った")
		}
	})
}

// TestProbe はProbe関数を検証する。
func TestProbe(t *testing.T) {
	t.Parallel()

	t.Run("2xx以外のステータスもエラーにならないこと", func(t *testing.T) {
		t.Parallel()

		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("x-origin-key") != "secret" {
				w.WriteHeader(http.StatusForbidden)
				return
			}
			w.WriteHeader(http.StatusOK)
		}))
		defer ts.Close()

		got, err := New(ts.URL).Probe(context.Background(), "/")
		if err != nil {
			t.Fatalf("Probe()でエラーが発生: %v", err)
		}
		if got != http.StatusForbidden {
			t.Errorf("ステータスコード = %d, want %d", got, http.StatusForbidden)
		}

		got, err = New(ts.URL, WithHeader("x-origin-key", "secret")).Probe(context.Background(), "/")
		if err != nil {
			t.Fatalf("Probe()でエラーが発生: %v", err)
		}
		if got != http.StatusOK {
			t.Errorf("ステータスコード = %d, want %d", got, http.StatusOK)
		}
	})

	t.Run("接続できないサーバーに対してエラーが返ること", func(t *testing.T) {
		t.Parallel()

		if _, err := New("http://127.0.0.1:1").Probe(context.Background(), "/"); err == nil {
			t.Fatal("Probe()がエラーを返すべきだが、nilが返った")
		}
	})
}

// TestWithRequestID はWithRequestID関数を検証する。
func TestWithRequestID(t *testing.T) {
	t.Parallel()

	t.Run("コンテキストのリクエストIDが伝播されること", func(t *testing.T) {
		t.Parallel()

		var received string
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			received = r.Header.Get(HeaderRequestID)
			w.WriteHeader(http.StatusOK)
		}))
		defer ts.Close()

		ctx := WithRequestID(context.Background(), "req-123")
		if _, err := New(ts.URL).Probe(ctx, "/"); err != nil {
			t.Fatalf("Probe()でエラーが発生: %v", err)
		}
		if received != "req-123" {
			t.Errorf("%s = %q, want %q", HeaderRequestID, received, "req-123")
		}
	})

	t.Run("設定されていない場合はヘッダーが空であること", func(t *testing.T) {
		t.Parallel()

		var received string
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			received = r.Header.Get(HeaderRequestID)
			w.WriteHeader(http.StatusOK)
		}))
		defer ts.Close()

		if _, err := New(ts.URL).Probe(context.Background(), "/"); err != nil {
			t.Fatalf("Probe()でエラーが発生: %v", err)
		}
		if received != "" {
			t.Errorf("%s = %q, want empty", HeaderRequestID, received)
		}
	})
}
