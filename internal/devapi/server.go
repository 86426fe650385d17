package devapi

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/nao1215/authgate/internal/config"
	"github.com/nao1215/authgate/pkg/middleware"
	_ "modernc.org/sqlite"
)

// devProvider は開発用ログインで作成されるユーザーのプロバイダー名。
const devProvider = "dev"

// defaultDevEmail はメールアドレスが指定されない場合の開発用ユーザー。
const defaultDevEmail = "dev@localhost"

// Server は開発用バックエンドのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// port はサーバーのリッスンポート。
	port string
	// store はユーザーの永続化を担当する。
	store *userStore
	// db はSQLiteデータベース接続。
	db *sql.DB
	// jwtSecret はセッショントークンの署名鍵。
	jwtSecret string
	// cookieName はセッションCookieの名前。
	cookieName string
	// sessionTTL はセッションの有効期間。
	sessionTTL time.Duration
}

// NewServer は新しい開発用バックエンドを生成する。
func NewServer(cfg config.DevAPI) (*Server, error) {
	sqlDB, err := sql.Open("sqlite", dataSourceName(cfg.DatabasePath))
	if err != nil {
		return nil, fmt.Errorf("データベース接続に失敗: %w", err)
	}
	// :memory: は接続ごとに別のDBになるため接続は1本に固定する
	sqlDB.SetMaxOpenConns(1)

	if err := initSchema(context.Background(), sqlDB); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("スキーマ初期化に失敗: %w", err)
	}

	router := gin.New()
	router.Use(middleware.Recovery())
	router.Use(gin.Logger())
	router.Use(middleware.CORS(cfg.CORSOrigins))

	s := &Server{
		router:     router,
		port:       cfg.Port,
		store:      &userStore{db: sqlDB},
		db:         sqlDB,
		jwtSecret:  cfg.JWTSecret,
		cookieName: cfg.SessionCookie,
		sessionTTL: cfg.SessionTTL,
	}
	s.setupRoutes()

	return s, nil
}

// dataSourceName はSQLiteの接続文字列を組み立てる。
func dataSourceName(path string) string {
	if path == ":memory:" {
		return path
	}
	return "file:" + path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
}

// Run はHTTPサーバーを起動する。
func (s *Server) Run() error {
	return s.router.Run(fmt.Sprintf(":%s", s.port))
}

// Handler はサーバーのHTTPハンドラを返す。
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close はデータベース接続を閉じる。
func (s *Server) Close() error {
	return s.db.Close()
}

// setupRoutes はAPIルーティングを設定する。
func (s *Server) setupRoutes() {
	auth := s.router.Group("/auth")
	{
		auth.POST("/dev-login", s.handleDevLogin())
		auth.POST("/logout", s.handleLogout())
	}

	s.router.GET("/user/me", middleware.SessionAuth(s.jwtSecret, s.cookieName), s.handleGetCurrentUser())

	// ヘルスチェック
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "devapi"})
	})
}

// devLoginRequest は開発用ログインのリクエストボディ。
type devLoginRequest struct {
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
}

// handleDevLogin は開発用ユーザーでログインし、セッションCookieを発行するハンドラを返す。
func (s *Server) handleDevLogin() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req devLoginRequest
		if c.Request.ContentLength != 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "リクエストボディが不正です"})
				return
			}
		}
		email := strings.TrimSpace(req.Email)
		if email == "" {
			email = defaultDevEmail
		}
		displayName := strings.TrimSpace(req.DisplayName)
		if displayName == "" {
			displayName = "開発ユーザー"
		}

		ctx := c.Request.Context()
		u, err := s.store.getByProvider(ctx, devProvider, email)
		switch {
		case errors.Is(err, errUserNotFound):
			u = user{
				ID:          uuid.New().String(),
				Email:       email,
				DisplayName: displayName,
				Provider:    devProvider,
			}
			if err := s.store.create(ctx, u, email); err != nil {
				log.Printf("[DevAPI] 開発ユーザー作成エラー: %v", err)
				c.JSON(http.StatusInternalServerError, gin.H{"error": "ユーザー作成に失敗しました"})
				return
			}
		case err != nil:
			log.Printf("[DevAPI] 開発ユーザー取得エラー: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "ユーザー取得に失敗しました"})
			return
		default:
			if err := s.store.touchLastLogin(ctx, u.ID); err != nil {
				log.Printf("[DevAPI] %v", err)
			}
		}

		token, err := middleware.GenerateSessionToken(s.jwtSecret, u.ID, u.Email, s.sessionTTL)
		if err != nil {
			log.Printf("[DevAPI] セッショントークン生成エラー: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "セッションの発行に失敗しました"})
			return
		}

		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(s.cookieName, token, int(s.sessionTTL.Seconds()), "/", "", c.Request.TLS != nil, true)
		c.JSON(http.StatusOK, gin.H{"user": u})
	}
}

// handleLogout はセッションCookieを削除するハンドラを返す。
func (s *Server) handleLogout() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(s.cookieName, "", -1, "/", "", c.Request.TLS != nil, true)
		c.Status(http.StatusNoContent)
	}
}

// handleGetCurrentUser はセッションのユーザー情報を返すハンドラを返す。
// ユーザーが削除済みの場合はセッションが無効とみなして401を返す。
func (s *Server) handleGetCurrentUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "ユーザーIDが取得できません"})
			return
		}

		u, err := s.store.getByID(c.Request.Context(), userID)
		if errors.Is(err, errUserNotFound) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "ユーザーが見つかりません"})
			return
		}
		if err != nil {
			log.Printf("[DevAPI] ユーザー取得エラー: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "ユーザー取得に失敗しました"})
			return
		}

		c.JSON(http.StatusOK, u)
	}
}
