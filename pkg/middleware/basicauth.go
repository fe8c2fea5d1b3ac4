package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/nao1215/survey-edge/pkg/basicauth"
)

// contextKeyDecision はゲートの判定をGinコンテキストに格納するためのキー。
const contextKeyDecision = "gate_decision"

// BasicAuth はBasic認証ゲートをリクエスト前フックとして適用するGinミドルウェアを返す。
// 転送判定ならc.Next()し、それ以外は判定に対応するステータスで中断する。
// チャレンジ系の判定ではWWW-Authenticateヘッダーを付与する。
func BasicAuth(g *basicauth.Gate) gin.HandlerFunc {
	return func(c *gin.Context) {
		d := g.Evaluate(c.Request.URL.Path, c.GetHeader("Authorization"))
		c.Set(contextKeyDecision, d)

		if d.Forwarded() {
			c.Next()
			return
		}

		if v := d.WWWAuthenticate(); v != "" {
			c.Header("WWW-Authenticate", v)
		}
		c.AbortWithStatusJSON(d.StatusCode(), gin.H{
			"error": d.StatusDescription(),
		})
	}
}

// GetDecision はGinコンテキストからゲートの判定を取得する。
// BasicAuthミドルウェアが適用されていない場合はfalseを返す。
func GetDecision(c *gin.Context) (basicauth.Decision, bool) {
	v, ok := c.Get(contextKeyDecision)
	if !ok {
		return basicauth.Decision{}, false
	}
	d, ok := v.(basicauth.Decision)
	return d, ok
}
