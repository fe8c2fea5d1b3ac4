package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

// CORSConfig はCORSルール。ストレージキャッシュバケットのCORS設定と同じ形を持つ。
type CORSConfig struct {
	// AllowedOrigins は許可するオリジン。
	AllowedOrigins []string
	// AllowedMethods は許可するHTTPメソッド。
	AllowedMethods []string
	// AllowedHeaders は許可するリクエストヘッダー。"*"は全て。
	AllowedHeaders []string
	// ExposedHeaders はブラウザに公開するレスポンスヘッダー。
	ExposedHeaders []string
	// MaxAge はプリフライト結果のキャッシュ秒数。
	MaxAge int
}

// CORS は指定されたルールでクロスオリジンリクエストを許可するGinミドルウェアを返す。
// 空のオリジンは無視する。
func CORS(cfg CORSConfig) gin.HandlerFunc {
	originsSet := make(map[string]struct{}, len(cfg.AllowedOrigins))
	for _, o := range cfg.AllowedOrigins {
		if o == "" {
			continue
		}
		originsSet[o] = struct{}{}
	}
	methods := strings.Join(cfg.AllowedMethods, ", ")
	headers := strings.Join(cfg.AllowedHeaders, ", ")
	exposed := strings.Join(cfg.ExposedHeaders, ", ")

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		_, allowed := originsSet[origin]
		if allowed {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Vary", "Origin")
			if methods != "" {
				c.Header("Access-Control-Allow-Methods", methods)
			}
			if headers != "" {
				c.Header("Access-Control-Allow-Headers", headers)
			}
			if exposed != "" {
				c.Header("Access-Control-Expose-Headers", exposed)
			}
			if cfg.MaxAge > 0 {
				c.Header("Access-Control-Max-Age", strconv.Itoa(cfg.MaxAge))
			}
		}

		// プリフライトは許可オリジンのみ応答し、それ以外は後続に任せる
		if allowed && c.Request.Method == http.MethodOptions && c.GetHeader("Access-Control-Request-Method") != "" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
