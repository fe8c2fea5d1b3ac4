package edge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ErrObjectNotFound はオブジェクトが存在しないことを表す。
var ErrObjectNotFound = errors.New("オブジェクトが見つかりません")

// ObjectInfo はオブジェクトのメタデータ。
type ObjectInfo struct {
	// Size はバイト数。
	Size int64
	// ContentType はMIMEタイプ。
	ContentType string
	// ETag はエンティティタグ（引用符なし）。
	ETag string
	// LastModified は最終更新時刻。
	LastModified time.Time
}

// ObjectStore はバケットオリジンのオブジェクトストレージ。
type ObjectStore interface {
	// Get はオブジェクトを取得する。呼び出し元はReadCloserを閉じる必要がある。
	Get(ctx context.Context, bucket, key string) (io.ReadCloser, ObjectInfo, error)
	// Stat はオブジェクトのメタデータを取得する。
	Stat(ctx context.Context, bucket, key string) (ObjectInfo, error)
	// Put はオブジェクトを保存する。sizeが不明な場合は-1を指定する。
	Put(ctx context.Context, bucket, key string, r io.Reader, size int64, contentType string) (ObjectInfo, error)
}

var defaultTransport = http.Transport{
	MaxIdleConns:          100,
	IdleConnTimeout:       90 * time.Second,
	TLSHandshakeTimeout:   10 * time.Second,
	ExpectContinueTimeout: 1 * time.Second,
}

// MinioStore はminioクライアントによるObjectStoreの実装。
type MinioStore struct {
	client *minio.Client
}

// NewMinioStore はS3互換エンドポイントに接続するObjectStoreを生成する。
// endpointのスキームがhttp://の場合は非TLSで接続する。スキームが無い場合はTLS。
func NewMinioStore(endpoint, accessKeyID, secretKey string) (*MinioStore, error) {
	secure := true
	transport := defaultTransport.Clone()

	if strings.HasPrefix(endpoint, "https://") {
		endpoint = strings.TrimPrefix(endpoint, "https://")
	} else if strings.HasPrefix(endpoint, "http://") {
		endpoint = strings.TrimPrefix(endpoint, "http://")
		secure = false
	}
	if secure {
		transport.DisableCompression = true
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:     credentials.NewStaticV4(accessKeyID, secretKey, ""),
		Secure:    secure,
		Transport: transport,
	})
	if err != nil {
		return nil, fmt.Errorf("オブジェクトストレージクライアントの生成に失敗: %w", err)
	}
	return &MinioStore{client: client}, nil
}

// Get はオブジェクトを取得する。
func (s *MinioStore) Get(ctx context.Context, bucket, key string) (io.ReadCloser, ObjectInfo, error) {
	obj, err := s.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, ObjectInfo{}, mapMinioError(err)
	}
	// GetObjectは遅延評価のため、Statで存在を確認する
	info, err := obj.Stat()
	if err != nil {
		obj.Close()
		return nil, ObjectInfo{}, mapMinioError(err)
	}
	return obj, toObjectInfo(info), nil
}

// Stat はオブジェクトのメタデータを取得する。
func (s *MinioStore) Stat(ctx context.Context, bucket, key string) (ObjectInfo, error) {
	info, err := s.client.StatObject(ctx, bucket, key, minio.StatObjectOptions{})
	if err != nil {
		return ObjectInfo{}, mapMinioError(err)
	}
	return toObjectInfo(info), nil
}

// Put はオブジェクトを保存する。
func (s *MinioStore) Put(ctx context.Context, bucket, key string, r io.Reader, size int64, contentType string) (ObjectInfo, error) {
	up, err := s.client.PutObject(ctx, bucket, key, r, size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return ObjectInfo{}, mapMinioError(err)
	}
	return ObjectInfo{
		Size:         up.Size,
		ContentType:  contentType,
		ETag:         up.ETag,
		LastModified: up.LastModified,
	}, nil
}

// toObjectInfo はminioのメタデータを変換する。
func toObjectInfo(info minio.ObjectInfo) ObjectInfo {
	return ObjectInfo{
		Size:         info.Size,
		ContentType:  info.ContentType,
		ETag:         info.ETag,
		LastModified: info.LastModified,
	}
}

// mapMinioError はminioのエラーを変換する。存在しないキーとバケットはErrObjectNotFoundにする。
func mapMinioError(err error) error {
	resp := minio.ToErrorResponse(err)
	switch resp.Code {
	case "NoSuchKey", "NoSuchBucket":
		return fmt.Errorf("%w: %s", ErrObjectNotFound, resp.Message)
	}
	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s", ErrObjectNotFound, resp.Message)
	}
	return fmt.Errorf("オブジェクトストレージの操作に失敗: %w", err)
}
