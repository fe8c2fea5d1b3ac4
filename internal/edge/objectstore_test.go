package edge

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"
)

// s3LastModified はS3スタブが返す最終更新時刻。
var s3LastModified = time.Date(2026, 4, 1, 9, 30, 0, 0, time.UTC)

// s3Stub はS3互換APIの最小限のスタブ。バケットstaticだけが存在する。
type s3Stub struct {
	mu      sync.Mutex
	objects map[string]string
	puts    map[string]putRecord
}

// putRecord はスタブが受け取ったPUTの内容。
type putRecord struct {
	body        string
	contentType string
}

// newS3Stub はS3スタブを起動し、そのエンドポイントURLを返す。
func newS3Stub(t *testing.T) (*s3Stub, string) {
	t.Helper()

	stub := &s3Stub{
		objects: map[string]string{"index.html": "<html>static</html>"},
		puts:    make(map[string]putRecord),
	}
	ts := httptest.NewServer(http.HandlerFunc(stub.serveHTTP))
	t.Cleanup(ts.Close)
	return stub, ts.URL
}

// writeS3Error はS3形式のXMLエラーを書き込む。
func writeS3Error(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(status)
	io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?>`+
		`<Error><Code>`+code+`</Code><Message>`+message+`</Message><RequestId>stub</RequestId></Error>`)
}

func (s *s3Stub) serveHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Has("location") {
		w.Header().Set("Content-Type", "application/xml")
		io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?>`+
			`<LocationConstraint xmlns="http://s3.amazonaws.com/doc/2006-03-01/">us-east-1</LocationConstraint>`)
		return
	}

	bucket, key, _ := strings.Cut(strings.TrimPrefix(r.URL.Path, "/"), "/")
	switch bucket {
	case "static":
	case "forbidden":
		writeS3Error(w, http.StatusForbidden, "AccessDenied", "Access Denied.")
		return
	default:
		writeS3Error(w, http.StatusNotFound, "NoSuchBucket", "The specified bucket does not exist")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch r.Method {
	case http.MethodPut:
		body, _ := io.ReadAll(r.Body)
		s.puts[key] = putRecord{body: string(body), contentType: r.Header.Get("Content-Type")}
		w.Header().Set("ETag", `"put-etag"`)
		w.WriteHeader(http.StatusOK)
	case http.MethodGet, http.MethodHead:
		data, ok := s.objects[key]
		if !ok {
			writeS3Error(w, http.StatusNotFound, "NoSuchKey", "The specified key does not exist.")
			return
		}
		w.Header().Set("Content-Type", "text/html")
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		w.Header().Set("ETag", `"abc123"`)
		w.Header().Set("Last-Modified", s3LastModified.Format(http.TimeFormat))
		w.WriteHeader(http.StatusOK)
		if r.Method == http.MethodGet {
			io.WriteString(w, data)
		}
	default:
		writeS3Error(w, http.StatusMethodNotAllowed, "MethodNotAllowed", "The specified method is not allowed.")
	}
}

// newTestMinioStore はS3スタブに接続するMinioStoreを生成する。
func newTestMinioStore(t *testing.T) (*MinioStore, *s3Stub) {
	t.Helper()

	stub, endpoint := newS3Stub(t)
	store, err := NewMinioStore(endpoint, "access", "secret")
	if err != nil {
		t.Fatalf("NewMinioStore()でエラーが発生: %v", err)
	}
	return store, stub
}

// TestNewMinioStore はエンドポイントのスキーム解釈を検証する。
func TestNewMinioStore(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		endpoint   string
		wantScheme string
		wantHost   string
	}{
		{name: "http://は非TLSで接続すること", endpoint: "http://127.0.0.1:9000", wantScheme: "http", wantHost: "127.0.0.1:9000"},
		{name: "https://はTLSで接続すること", endpoint: "https://s3.example.com", wantScheme: "https", wantHost: "s3.example.com"},
		{name: "スキームが無ければTLSで接続すること", endpoint: "minio.local:9000", wantScheme: "https", wantHost: "minio.local:9000"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			s, err := NewMinioStore(tt.endpoint, "access", "secret")
			if err != nil {
				t.Fatalf("NewMinioStore()でエラーが発生: %v", err)
			}
			u := s.client.EndpointURL()
			if u.Scheme != tt.wantScheme {
				t.Errorf("Scheme = %q, want %q", u.Scheme, tt.wantScheme)
			}
			if u.Host != tt.wantHost {
				t.Errorf("Host = %q, want %q", u.Host, tt.wantHost)
			}
		})
	}
}

// TestMinioStore はS3スタブに対する取得・メタデータ取得・保存を検証する。
func TestMinioStore(t *testing.T) {
	t.Parallel()

	t.Run("Getで本文とメタデータを取得できること", func(t *testing.T) {
		t.Parallel()

		s, _ := newTestMinioStore(t)
		rc, info, err := s.Get(context.Background(), "static", "index.html")
		if err != nil {
			t.Fatalf("Get()でエラーが発生: %v", err)
		}
		defer rc.Close()

		body, err := io.ReadAll(rc)
		if err != nil {
			t.Fatalf("本文の読み込みに失敗: %v", err)
		}
		if string(body) != "<html>static</html>" {
			t.Errorf("body = %q", body)
		}
		if info.ETag != "abc123" {
			t.Errorf("ETag = %q, want %q", info.ETag, "abc123")
		}
		if info.Size != int64(len(body)) {
			t.Errorf("Size = %d, want %d", info.Size, len(body))
		}
		if info.ContentType != "text/html" {
			t.Errorf("ContentType = %q", info.ContentType)
		}
		if !info.LastModified.Equal(s3LastModified) {
			t.Errorf("LastModified = %v, want %v", info.LastModified, s3LastModified)
		}
	})

	t.Run("Statでメタデータを取得できること", func(t *testing.T) {
		t.Parallel()

		s, _ := newTestMinioStore(t)
		info, err := s.Stat(context.Background(), "static", "index.html")
		if err != nil {
			t.Fatalf("Stat()でエラーが発生: %v", err)
		}
		if info.ETag != "abc123" || info.Size != int64(len("<html>static</html>")) {
			t.Errorf("info = %+v", info)
		}
		if !info.LastModified.Equal(s3LastModified) {
			t.Errorf("LastModified = %v, want %v", info.LastModified, s3LastModified)
		}
	})

	t.Run("Putでオブジェクトを保存できること", func(t *testing.T) {
		t.Parallel()

		s, stub := newTestMinioStore(t)
		payload := "survey-upload-payload"
		info, err := s.Put(context.Background(), "static", "upload/a.txt", strings.NewReader(payload), int64(len(payload)), "text/plain")
		if err != nil {
			t.Fatalf("Put()でエラーが発生: %v", err)
		}
		if info.ETag != "put-etag" {
			t.Errorf("ETag = %q, want %q", info.ETag, "put-etag")
		}
		if info.Size != int64(len(payload)) || info.ContentType != "text/plain" {
			t.Errorf("info = %+v", info)
		}

		stub.mu.Lock()
		got, ok := stub.puts["upload/a.txt"]
		stub.mu.Unlock()
		if !ok {
			t.Fatal("スタブにPUTが届いていない")
		}
		if !strings.Contains(got.body, payload) {
			t.Errorf("PUTの本文に %q が含まれない: %q", payload, got.body)
		}
		if got.contentType != "text/plain" {
			t.Errorf("Content-Type = %q", got.contentType)
		}
	})

	t.Run("存在しないキーはErrObjectNotFoundになること", func(t *testing.T) {
		t.Parallel()

		s, _ := newTestMinioStore(t)
		if _, _, err := s.Get(context.Background(), "static", "missing.html"); !errors.Is(err, ErrObjectNotFound) {
			t.Errorf("Get() err = %v, want %v", err, ErrObjectNotFound)
		}
		if _, err := s.Stat(context.Background(), "static", "missing.html"); !errors.Is(err, ErrObjectNotFound) {
			t.Errorf("Stat() err = %v, want %v", err, ErrObjectNotFound)
		}
	})

	t.Run("存在しないバケットはErrObjectNotFoundになること", func(t *testing.T) {
		t.Parallel()

		s, _ := newTestMinioStore(t)
		if _, _, err := s.Get(context.Background(), "nobucket", "index.html"); !errors.Is(err, ErrObjectNotFound) {
			t.Errorf("Get() err = %v, want %v", err, ErrObjectNotFound)
		}
	})

	t.Run("権限エラーはErrObjectNotFoundにならないこと", func(t *testing.T) {
		t.Parallel()

		s, _ := newTestMinioStore(t)
		_, _, err := s.Get(context.Background(), "forbidden", "index.html")
		if err == nil {
			t.Fatal("エラーが返るべき")
		}
		if errors.Is(err, ErrObjectNotFound) {
			t.Errorf("err = %v, ErrObjectNotFoundであってはならない", err)
		}
		if got := minio.ToErrorResponse(errors.Unwrap(err)).Code; got != "AccessDenied" {
			t.Errorf("Code = %q, want %q", got, "AccessDenied")
		}
	})
}

// TestMapMinioError はminioのエラー変換を検証する。
func TestMapMinioError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		err          error
		wantNotFound bool
	}{
		{name: "NoSuchKeyは未検出になること", err: minio.ErrorResponse{Code: "NoSuchKey", StatusCode: http.StatusNotFound}, wantNotFound: true},
		{name: "NoSuchBucketは未検出になること", err: minio.ErrorResponse{Code: "NoSuchBucket", StatusCode: http.StatusNotFound}, wantNotFound: true},
		{name: "コード無しの404は未検出になること", err: minio.ErrorResponse{StatusCode: http.StatusNotFound}, wantNotFound: true},
		{name: "AccessDeniedは未検出にならないこと", err: minio.ErrorResponse{Code: "AccessDenied", StatusCode: http.StatusForbidden}},
		{name: "InternalErrorは未検出にならないこと", err: minio.ErrorResponse{Code: "InternalError", StatusCode: http.StatusInternalServerError}},
		{name: "minio以外のエラーは未検出にならないこと", err: errors.New("connection refused")},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := mapMinioError(tt.err)
			if errors.Is(got, ErrObjectNotFound) != tt.wantNotFound {
				t.Errorf("mapMinioError(%v) = %v, wantNotFound %v", tt.err, got, tt.wantNotFound)
			}
			if tt.wantNotFound {
				return
			}
			if inner := errors.Unwrap(got); inner == nil || inner.Error() != tt.err.Error() {
				t.Errorf("元のエラーが保持されていない: %v", got)
			}
		})
	}
}
