package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// HeaderRequestID はリクエストIDを伝播するHTTPヘッダーキー。
const HeaderRequestID = "X-Request-Id"

// contextKeyRequestID はリクエストIDをGinコンテキストに格納するためのキー。
const contextKeyRequestID = "request_id"

// RequestID はリクエストIDを付与するGinミドルウェアを返す。
// ビューアーが既にX-Request-Idを送っている場合はそれを引き継ぐ。
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderRequestID)
		if id == "" {
			id = uuid.New().String()
			c.Request.Header.Set(HeaderRequestID, id)
		}
		c.Set(contextKeyRequestID, id)
		c.Header(HeaderRequestID, id)
		c.Next()
	}
}

// GetRequestID はGinコンテキストからリクエストIDを取得する。
func GetRequestID(c *gin.Context) string {
	v, _ := c.Get(contextKeyRequestID)
	if id, ok := v.(string); ok {
		return id
	}
	return ""
}
