package shell

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"net/http"
	"os"
	"path"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/authgate/internal/authgate"
	"github.com/nao1215/authgate/internal/config"
	"github.com/nao1215/authgate/pkg/httpclient"
	"github.com/nao1215/authgate/pkg/middleware"
)

// dataPath はクライアント側ナビゲーション用のページデータ取得パス。
const dataPath = "/__data.json"

// Server はデスクトップシェル向けフロントエンドを配信するHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// port はサーバーのリッスンポート。
	port string
	// gate はナビゲーションごとに現在のユーザーを解決する。
	gate *authgate.Loader
	// pages は事前レンダリング済みのフロントエンド。
	pages fs.FS
	// origin はオリジン相対のAPIを解決する公開オリジン。
	origin string
}

// NewServer は新しいシェルサーバーを生成する。
func NewServer(cfg config.Shell) (*Server, error) {
	info, err := os.Stat(cfg.StaticDir)
	if err != nil {
		return nil, fmt.Errorf("静的ファイルのディレクトリを開けません: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("STATIC_DIRがディレクトリではありません: %s", cfg.StaticDir)
	}

	client := httpclient.New(cfg.PublicBaseAPI, httpclient.WithTimeout(cfg.FetchTimeout))
	gate := authgate.NewLoader(client,
		authgate.WithFailurePolicy(cfg.FailurePolicy),
		authgate.WithLoginPath(cfg.LoginPath),
	)

	router := gin.New()
	router.Use(middleware.Recovery())
	router.Use(gin.Logger())
	router.Use(middleware.CORS(cfg.CORSOrigins))

	s := &Server{
		router: router,
		port:   cfg.Port,
		gate:   gate,
		pages:  os.DirFS(cfg.StaticDir),
		origin: cfg.PublicOrigin,
	}
	s.setupRoutes()

	log.Printf("[Shell] 認証ゲート: api=%s, login=%s, policy=%s", cfg.PublicBaseAPI, cfg.LoginPath, cfg.FailurePolicy)
	return s, nil
}

// Run はHTTPサーバーを起動する。
func (s *Server) Run() error {
	return s.router.Run(fmt.Sprintf(":%s", s.port))
}

// Handler はサーバーのHTTPハンドラを返す。
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes はルーティングを設定する。
// ページのパスは事前に列挙できないため、ナビゲーションはNoRouteで受ける。
func (s *Server) setupRoutes() {
	// ヘルスチェック
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "shell"})
	})

	s.router.Match([]string{http.MethodGet, http.MethodHead}, dataPath, s.handleData())
	s.router.NoRoute(s.handleNavigation())
}

// handleNavigation はトップレベルのナビゲーションを処理するハンドラを返す。
// ログインページと静的アセットは認証なしで配信し、それ以外はゲートを通す。
func (s *Server) handleNavigation() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
			c.JSON(http.StatusMethodNotAllowed, gin.H{"error": "許可されていないメソッドです"})
			return
		}

		p := path.Clean("/" + c.Request.URL.Path)
		switch {
		case s.isAsset(p):
			c.FileFromFS(p, http.FS(s.pages))
		case s.isLoginPath(p):
			s.servePage(c, p, nil)
		default:
			data, ok := s.runGate(c)
			if !ok {
				return
			}
			s.servePage(c, p, &data)
		}
	}
}

// handleData はクライアント側ナビゲーション用にページデータを返すハンドラを返す。
// 未認証の場合も200で転送先を返し、転送はクライアントに任せる。
func (s *Server) handleData() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Cache-Control", "no-store")

		outcome, err := s.gate.Load(s.gateContext(c.Request))
		if err != nil {
			log.Printf("[Shell] ページデータの取得に失敗: %v", err)
			c.JSON(http.StatusBadGateway, gin.H{"type": "error", "error": "ユーザー情報の取得に失敗しました"})
			return
		}

		data, ok := outcome.PageData()
		if !ok {
			c.JSON(http.StatusOK, gin.H{
				"type":     "redirect",
				"location": outcome.Redirect.Location,
				"status":   outcome.Redirect.Status,
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{"type": "data", "data": data})
	}
}

// runGate は認証ゲートを実行する。
// 認証済みの場合はページデータとtrueを返し、それ以外はレスポンスを書き込んでfalseを返す。
func (s *Server) runGate(c *gin.Context) (authgate.PageData, bool) {
	outcome, err := s.gate.Load(s.gateContext(c.Request))
	if err != nil {
		log.Printf("[Shell] 認証ゲートでエラー: path=%s, error=%v", c.Request.URL.Path, err)
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": "ユーザー情報の取得に失敗しました"})
		return authgate.PageData{}, false
	}

	data, ok := outcome.PageData()
	if !ok {
		c.Redirect(outcome.Redirect.Status, outcome.Redirect.Location)
		c.Abort()
		return authgate.PageData{}, false
	}
	return data, true
}

// servePage はURLパスに対応するHTMLを返す。dataがあればページに埋め込む。
func (s *Server) servePage(c *gin.Context, p string, data *authgate.PageData) {
	body, err := readPage(s.pages, p)
	if errors.Is(err, errPageNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "ページが見つかりません"})
		return
	}
	if err != nil {
		log.Printf("[Shell] %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "ページの読み込みに失敗しました"})
		return
	}

	if data != nil {
		body, err = injectPageData(body, *data)
		if err != nil {
			log.Printf("[Shell] %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "ページの生成に失敗しました"})
			return
		}
		// ユーザー情報を含むため共有キャッシュに載せない
		c.Header("Cache-Control", "no-store")
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", body)
}

// isLoginPath はログインページ配下のパスかどうかを返す。
func (s *Server) isLoginPath(p string) bool {
	login := s.gate.LoginPath()
	return p == login || strings.HasPrefix(p, strings.TrimRight(login, "/")+"/")
}

// isAsset は静的アセットへのリクエストかどうかを返す。
// 拡張子があっても該当するファイルが無ければナビゲーションとして扱う。
func (s *Server) isAsset(p string) bool {
	ext := path.Ext(p)
	if ext == "" || ext == ".html" {
		return false
	}
	info, err := fs.Stat(s.pages, strings.TrimPrefix(p, "/"))
	return err == nil && !info.IsDir()
}

// gateContext はナビゲーションのCookieと公開オリジンを載せたコンテキストを返す。
// オリジンは設定値のみを使い、リクエストのHostヘッダーは参照しない。
func (s *Server) gateContext(r *http.Request) context.Context {
	ctx := httpclient.WithCookies(r.Context(), r.Cookies())
	if s.origin == "" {
		return ctx
	}
	return httpclient.WithOrigin(ctx, s.origin)
}
