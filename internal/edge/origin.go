package edge

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/survey-edge/internal/stack"
	"github.com/nao1215/survey-edge/pkg/httpclient"
	"github.com/nao1215/survey-edge/pkg/middleware"
	"go.uber.org/zap"
)

// hopHeaders は中継しないホップバイホップヘッダー。
var hopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// proxyApp はアプリオリジンへリクエストを中継するハンドラを返す。
// Host以外のビューアーヘッダーを転送し、共有シークレットヘッダーはクライアントが付与する。
// applyPolicyがtrueの場合、レスポンスヘッダーポリシーを適用する。
func (s *Server) proxyApp(origin stack.Origin, applyPolicy bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.app == nil {
			s.metrics.observeOrigin(origin.ID, http.StatusBadGateway)
			c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": "アプリオリジンが設定されていません"})
			return
		}

		header := c.Request.Header.Clone()
		for _, h := range hopHeaders {
			header.Del(h)
		}
		header.Del(middleware.HeaderRequestID)
		header.Set("X-Forwarded-Host", c.Request.Host)
		header.Set("X-Forwarded-For", c.ClientIP())

		ctx := httpclient.WithRequestID(c.Request.Context(), middleware.GetRequestID(c))
		resp, err := s.app.Do(ctx, c.Request.Method, c.Request.URL.RequestURI(), header, c.Request.Body)
		if err != nil {
			s.logger.Error("アプリオリジンとの通信に失敗",
				zap.String("request_id", middleware.GetRequestID(c)),
				zap.String("origin", origin.ID),
				zap.Error(err),
			)
			s.metrics.observeOrigin(origin.ID, http.StatusBadGateway)
			c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": "アプリオリジンとの通信に失敗しました"})
			return
		}
		defer resp.Body.Close()

		dst := c.Writer.Header()
		for k, vs := range resp.Header {
			dst[k] = append([]string(nil), vs...)
		}
		for _, h := range hopHeaders {
			dst.Del(h)
		}
		if applyPolicy {
			s.applyResponseHeaders(dst)
		}

		s.metrics.observeOrigin(origin.ID, resp.StatusCode)
		c.Status(resp.StatusCode)
		c.Writer.WriteHeaderNow()
		if c.Request.Method == http.MethodHead {
			return
		}
		if _, err := io.Copy(c.Writer, resp.Body); err != nil {
			s.logger.Warn("レスポンスの中継に失敗",
				zap.String("request_id", middleware.GetRequestID(c)),
				zap.Error(err),
			)
		}
	}
}

// applyResponseHeaders はレスポンスヘッダーポリシーのカスタムヘッダーを適用する。
// Overrideがfalseのヘッダーはオリジンが設定していない場合のみ追加する。
func (s *Server) applyResponseHeaders(h http.Header) {
	for _, ch := range s.stack.ResponseHeadersPolicy.Headers {
		if !ch.Override && h.Get(ch.Header) != "" {
			continue
		}
		h.Set(ch.Header, ch.Value)
	}
}

// serveObject はバケットオリジンのオブジェクトを配信・保存するハンドラを返す。
// パスの先頭の"/"を除いたものをオブジェクトキーとする。
func (s *Server) serveObject(origin stack.Origin) gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.store == nil {
			s.metrics.observeOrigin(origin.ID, http.StatusBadGateway)
			c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": "オブジェクトストレージが設定されていません"})
			return
		}

		key := strings.TrimPrefix(c.Request.URL.Path, "/")
		switch c.Request.Method {
		case http.MethodGet, http.MethodHead:
			s.getObject(c, origin, key)
		case http.MethodPut:
			s.putObject(c, origin, key)
		default:
			s.metrics.observeOrigin(origin.ID, http.StatusMethodNotAllowed)
			c.Header("Allow", "GET, HEAD, PUT")
			c.AbortWithStatusJSON(http.StatusMethodNotAllowed, gin.H{"error": "バケットオリジンでは許可されていないメソッドです"})
		}
	}
}

// getObject はオブジェクトを返す。HEADの場合はヘッダーのみ返す。
func (s *Server) getObject(c *gin.Context, origin stack.Origin, key string) {
	ctx := c.Request.Context()

	var (
		body io.ReadCloser
		info ObjectInfo
		err  error
	)
	if c.Request.Method == http.MethodHead {
		info, err = s.store.Stat(ctx, origin.Bucket, key)
	} else {
		body, info, err = s.store.Get(ctx, origin.Bucket, key)
	}
	if err != nil {
		s.objectError(c, origin, key, err)
		return
	}
	if body != nil {
		defer body.Close()
	}

	setObjectHeaders(c.Writer.Header(), info)
	s.metrics.observeOrigin(origin.ID, http.StatusOK)
	c.Status(http.StatusOK)
	c.Writer.WriteHeaderNow()
	if body == nil {
		return
	}
	if _, err := io.Copy(c.Writer, body); err != nil {
		s.logger.Warn("オブジェクトの送信に失敗",
			zap.String("request_id", middleware.GetRequestID(c)),
			zap.String("key", key),
			zap.Error(err),
		)
	}
}

// putObject はリクエストボディをオブジェクトとして保存する。
func (s *Server) putObject(c *gin.Context, origin stack.Origin, key string) {
	contentType := c.GetHeader("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	info, err := s.store.Put(c.Request.Context(), origin.Bucket, key, c.Request.Body, c.Request.ContentLength, contentType)
	if err != nil {
		s.objectError(c, origin, key, err)
		return
	}

	if info.ETag != "" {
		c.Header("ETag", quoteETag(info.ETag))
	}
	s.metrics.observeOrigin(origin.ID, http.StatusOK)
	c.Status(http.StatusOK)
	c.Writer.WriteHeaderNow()
}

// objectError はオブジェクトストレージのエラーをレスポンスに変換する。
func (s *Server) objectError(c *gin.Context, origin stack.Origin, key string, err error) {
	if errors.Is(err, ErrObjectNotFound) {
		s.metrics.observeOrigin(origin.ID, http.StatusNotFound)
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "オブジェクトが見つかりません"})
		return
	}
	s.logger.Error("オブジェクトストレージの操作に失敗",
		zap.String("request_id", middleware.GetRequestID(c)),
		zap.String("bucket", origin.Bucket),
		zap.String("key", key),
		zap.Error(err),
	)
	s.metrics.observeOrigin(origin.ID, http.StatusBadGateway)
	c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": "オブジェクトストレージとの通信に失敗しました"})
}

// setObjectHeaders はオブジェクトのメタデータをレスポンスヘッダーに設定する。
func setObjectHeaders(h http.Header, info ObjectInfo) {
	contentType := info.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	h.Set("Content-Type", contentType)
	h.Set("Content-Length", strconv.FormatInt(info.Size, 10))
	if info.ETag != "" {
		h.Set("ETag", quoteETag(info.ETag))
	}
	if !info.LastModified.IsZero() {
		h.Set("Last-Modified", info.LastModified.UTC().Format(http.TimeFormat))
	}
}

// quoteETag はETagを引用符で囲む。既に囲まれている場合はそのまま返す。
func quoteETag(etag string) string {
	if strings.HasPrefix(etag, `"`) {
		return etag
	}
	return `"` + etag + `"`
}
