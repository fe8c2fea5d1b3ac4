package edge

import (
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/survey-edge/internal/config"
	"github.com/nao1215/survey-edge/internal/stack"
	"github.com/nao1215/survey-edge/pkg/basicauth"
	"github.com/nao1215/survey-edge/pkg/httpclient"
	"github.com/nao1215/survey-edge/pkg/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// methodsGetHead はGET_HEADビヘイビアで許可するメソッド。
var methodsGetHead = []string{http.MethodGet, http.MethodHead}

// methodsAll はALLビヘイビアで許可するメソッド。
var methodsAll = []string{
	http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodPut,
	http.MethodPost, http.MethodPatch, http.MethodDelete,
}

// originTimeout はアプリオリジンへの中継のタイムアウト。関数のタイムアウトに合わせる。
const originTimeout = 300 * time.Second

// Server はエッジランタイムのHTTPサーバー。
type Server struct {
	// router はビューアーリクエストを配信ビヘイビアに渡すGinのHTTPルーター。
	router *gin.Engine
	// admin はヘルスチェックとメトリクスを公開する管理用ルーター。
	admin *gin.Engine
	// port はサーバーのリッスンポート。
	port string
	// adminPort は管理用ルーターのリッスンポート。
	adminPort string
	// logger は構造化ロガー。
	logger *zap.Logger
	// stack は配信設定の元になるスタック。
	stack *stack.Stack
	// gate はBasic認証ゲート。無効な場合はnil。
	gate *basicauth.Gate
	// app はアプリオリジンへのクライアント。未設定の場合はnil。
	app *httpclient.Client
	// store はバケットオリジンのオブジェクトストレージ。未設定の場合はnil。
	store ObjectStore
	// enforceHTTPS はredirect-to-httpsビヘイビアでHTTPをリダイレクトするかどうか。
	enforceHTTPS bool
	// registry はメトリクスのレジストリ。
	registry *prometheus.Registry
	// metrics はエッジランタイムのメトリクス。
	metrics *metrics
	// chains はパスパターンごとのハンドラチェーン。
	chains map[string][]gin.HandlerFunc
}

// NewServer は設定から新しいエッジサーバーを生成する。
// storeがnilの場合、バケットオリジンへのリクエストは502になる。
func NewServer(cfg *config.Config, store ObjectStore, logger *zap.Logger) (*Server, error) {
	st, err := stack.Build(cfg)
	if err != nil {
		return nil, fmt.Errorf("スタックの組み立てに失敗: %w", err)
	}

	registry := prometheus.NewRegistry()
	s := &Server{
		router:       gin.New(),
		admin:        gin.New(),
		port:         cfg.Edge.Port,
		adminPort:    cfg.Edge.AdminPort,
		logger:       logger,
		stack:        st,
		store:        store,
		enforceHTTPS: cfg.Edge.EnforceHTTPS,
		registry:     registry,
		metrics:      newMetrics(registry),
	}
	if st.EdgeFunction != nil {
		r := st.EdgeFunction.Gate
		s.gate = basicauth.New(basicauth.Config{
			PublicPaths: r.PublicPaths,
			Services:    r.Services,
			Realms:      r.Realms,
			Usernames:   r.Usernames,
			Passwords:   r.Passwords,
		})
	}
	if cfg.Edge.AppOriginURL != "" {
		s.app = httpclient.New(cfg.Edge.AppOriginURL,
			httpclient.WithHeader(cfg.App.AccessKeyName, cfg.App.AccessKeyValue),
			httpclient.WithTimeout(originTimeout),
		)
	}

	s.router.RedirectTrailingSlash = false
	s.router.RedirectFixedPath = false
	s.router.Use(middleware.Recovery(logger))
	s.router.Use(middleware.RequestID())
	s.router.Use(middleware.Logger(logger))
	s.admin.Use(middleware.Recovery(logger))

	s.setupChains()
	s.setupRoutes()
	return s, nil
}

// Run は配信用と管理用のHTTPサーバーを起動する。どちらかが終了した時点でそのエラーを返す。
// adminPortが空の場合、管理用サーバーは起動しない。
func (s *Server) Run() error {
	errCh := make(chan error, 2)
	if s.adminPort != "" {
		go func() {
			errCh <- fmt.Errorf("管理用サーバーが終了: %w", s.admin.Run(fmt.Sprintf(":%s", s.adminPort)))
		}()
	}
	go func() {
		errCh <- s.router.Run(fmt.Sprintf(":%s", s.port))
	}()
	return <-errCh
}

// Handler は配信用のhttp.Handlerを返す。
func (s *Server) Handler() http.Handler {
	return s.router
}

// AdminHandler はヘルスチェックとメトリクスを公開する管理用のhttp.Handlerを返す。
func (s *Server) AdminHandler() http.Handler {
	return s.admin
}

// setupRoutes はルーティングを設定する。
// 配信用ルーターは固定ルートを持たず、すべてNoRouteで配信ビヘイビアに渡す。
func (s *Server) setupRoutes() {
	s.router.NoRoute(s.dispatch)

	// ヘルスチェック
	s.admin.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "edge"})
	})
	s.admin.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})))
}

// setupChains はビヘイビアごとのハンドラチェーンを組み立てる。
// 順序はHTTPSリダイレクト、メソッド検査、ゲート、オリジン。
func (s *Server) setupChains() {
	s.chains = make(map[string][]gin.HandlerFunc)
	behaviors := append(slices.Clone(s.stack.Distribution.Behaviors), s.stack.Distribution.DefaultBehavior)
	for _, b := range behaviors {
		var chain []gin.HandlerFunc
		if s.enforceHTTPS && b.ViewerProtocolPolicy == "redirect-to-https" {
			chain = append(chain, redirectToHTTPS())
		}
		chain = append(chain, allowMethods(b.AllowedMethods))
		if b.Gate && s.gate != nil {
			chain = append(chain, middleware.BasicAuth(s.gate))
		}
		chain = append(chain, s.originHandlers(b)...)
		s.chains[b.PathPattern] = chain
	}
}

// dispatch はパスに一致するビヘイビアのチェーンを実行する。
func (s *Server) dispatch(c *gin.Context) {
	b := s.stack.Distribution.Resolve(c.Request.URL.Path)
	for _, h := range s.chains[b.PathPattern] {
		h(c)
		if c.IsAborted() {
			break
		}
	}

	if d, ok := middleware.GetDecision(c); ok {
		s.metrics.gateDecisions.WithLabelValues(d.Kind.String()).Inc()
		s.logger.Debug("ゲート判定",
			zap.String("request_id", middleware.GetRequestID(c)),
			zap.String("behavior", b.PathPattern),
			zap.Stringer("kind", d.Kind),
			zap.Int("service_index", d.ServiceIndex),
		)
	}
}

// originHandlers はビヘイビアのオリジンに対応するハンドラを返す。
func (s *Server) originHandlers(b stack.Behavior) []gin.HandlerFunc {
	origin, ok := s.stack.Distribution.Origin(b.OriginID)
	if !ok {
		return []gin.HandlerFunc{func(c *gin.Context) {
			c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": "オリジンが定義されていません"})
		}}
	}

	switch origin.Kind {
	case stack.OriginKindFunctionURL:
		return []gin.HandlerFunc{s.proxyApp(origin, b.ResponseHeadersPolicy != "")}
	default:
		var handlers []gin.HandlerFunc
		if rule, ok := s.corsFor(origin.Bucket); ok {
			handlers = append(handlers, middleware.CORS(middleware.CORSConfig{
				AllowedOrigins: rule.AllowedOrigins,
				AllowedMethods: rule.AllowedMethods,
				AllowedHeaders: rule.AllowedHeaders,
				ExposedHeaders: rule.ExposedHeaders,
				MaxAge:         rule.MaxAgeSeconds,
			}))
		}
		return append(handlers, s.serveObject(origin))
	}
}

// corsFor はバケット名に対応するCORSルールを返す。
func (s *Server) corsFor(bucket string) (stack.CORSRule, bool) {
	for _, b := range s.stack.Buckets {
		if b.Name == bucket && len(b.CORS) > 0 {
			return b.CORS[0], true
		}
	}
	return stack.CORSRule{}, false
}

// allowMethods は許可されていないメソッドを405で拒否するハンドラを返す。
func allowMethods(policy string) gin.HandlerFunc {
	methods := methodsAll
	if policy == stack.AllowedMethodsGetHead {
		methods = methodsGetHead
	}
	return func(c *gin.Context) {
		if slices.Contains(methods, c.Request.Method) {
			return
		}
		c.Header("Allow", strings.Join(methods, ", "))
		c.AbortWithStatusJSON(http.StatusMethodNotAllowed, gin.H{"error": "許可されていないメソッドです"})
	}
}

// redirectToHTTPS はHTTPのリクエストをHTTPSへ恒久リダイレクトするハンドラを返す。
// TLS終端がプロキシの場合はX-Forwarded-Protoで判定する。
func redirectToHTTPS() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.TLS != nil || c.GetHeader("X-Forwarded-Proto") == "https" {
			return
		}
		c.Redirect(http.StatusMovedPermanently, "https://"+c.Request.Host+c.Request.URL.RequestURI())
		c.Abort()
	}
}
