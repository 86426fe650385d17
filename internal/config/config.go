// Package config は環境変数から各サービスの設定を読み込む。
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/nao1215/authgate/internal/authgate"
)

// Shell はシェルサーバーの設定。
type Shell struct {
	// Port はサーバーのリッスンポート。
	Port string `env:"PORT" envDefault:"1420"`
	// PublicBaseAPI はバックエンドAPIのベースURL。
	PublicBaseAPI string `env:"PUBLIC_BASE_API,required,notEmpty"`
	// PublicOrigin はシェルの公開オリジン（例: "https://app.example.com"）。
	// オリジン相対のPUBLIC_BASE_APIはこのオリジンで解決する。
	PublicOrigin string `env:"PUBLIC_ORIGIN"`
	// StaticDir は事前レンダリング済みのフロントエンドの出力先。
	StaticDir string `env:"STATIC_DIR" envDefault:"build"`
	// LoginPath は未認証時の誘導先。
	LoginPath string `env:"LOGIN_PATH" envDefault:"/login"`
	// FailurePolicy は /user/me への通信エラー時の振る舞い。
	FailurePolicy authgate.FailurePolicy `env:"AUTHGATE_TRANSPORT_FAILURE" envDefault:"propagate"`
	// FetchTimeout は /user/me 取得のタイムアウト。0はタイムアウトなし。
	FetchTimeout time.Duration `env:"FETCH_TIMEOUT" envDefault:"0s"`
	// CORSOrigins はデスクトップシェルのWebViewなど、許可するオリジン。
	CORSOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"tauri://localhost,http://tauri.localhost"`
}

// DevAPI は開発用バックエンドの設定。
type DevAPI struct {
	// Port はサーバーのリッスンポート。
	Port string `env:"DEVAPI_PORT" envDefault:"8080"`
	// DatabasePath はSQLiteのファイルパス。":memory:" も指定できる。
	DatabasePath string `env:"DEVAPI_DATABASE_PATH" envDefault:"devapi.db"`
	// JWTSecret はセッショントークンの署名鍵。
	JWTSecret string `env:"JWT_SECRET" envDefault:"dev-secret-key"`
	// SessionCookie はセッションCookieの名前。
	SessionCookie string `env:"SESSION_COOKIE" envDefault:"session"`
	// SessionTTL はセッションの有効期間。
	SessionTTL time.Duration `env:"SESSION_TTL" envDefault:"24h"`
	// CORSOrigins はCookie付きのクロスオリジン要求を許可するオリジン。
	CORSOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:1420,tauri://localhost"`
}

// LoadShell は環境変数からシェルサーバーの設定を読み込み、検証する。
func LoadShell() (Shell, error) {
	return loadShell(env.Options{})
}

func loadShell(opts env.Options) (Shell, error) {
	var cfg Shell
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Shell{}, fmt.Errorf("環境変数の読み込みに失敗: %w", err)
	}

	cfg.PublicBaseAPI = strings.TrimSpace(cfg.PublicBaseAPI)
	if err := ValidateBaseAPI(cfg.PublicBaseAPI); err != nil {
		return Shell{}, err
	}
	cfg.PublicOrigin = strings.TrimRight(strings.TrimSpace(cfg.PublicOrigin), "/")
	if cfg.PublicOrigin == "" && strings.HasPrefix(cfg.PublicBaseAPI, "/") {
		return Shell{}, fmt.Errorf("オリジン相対のPUBLIC_BASE_APIにはPUBLIC_ORIGINが必要です: %q", cfg.PublicBaseAPI)
	}
	if cfg.PublicOrigin != "" {
		if err := ValidateOrigin(cfg.PublicOrigin); err != nil {
			return Shell{}, err
		}
	}
	if !strings.HasPrefix(cfg.LoginPath, "/") {
		return Shell{}, fmt.Errorf("LOGIN_PATHは/で始まる必要があります: %q", cfg.LoginPath)
	}
	if cfg.FetchTimeout < 0 {
		return Shell{}, errors.New("FETCH_TIMEOUTに負の値は指定できません")
	}
	return cfg, nil
}

// LoadDevAPI は環境変数から開発用バックエンドの設定を読み込む。
func LoadDevAPI() (DevAPI, error) {
	return loadDevAPI(env.Options{})
}

func loadDevAPI(opts env.Options) (DevAPI, error) {
	var cfg DevAPI
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return DevAPI{}, fmt.Errorf("環境変数の読み込みに失敗: %w", err)
	}
	if cfg.SessionTTL <= 0 {
		return DevAPI{}, errors.New("SESSION_TTLは正の値である必要があります")
	}
	return cfg, nil
}

// ValidateBaseAPI はAPIのベースURLが空でない絶対URLかオリジン相対パスであることを検証する。
func ValidateBaseAPI(raw string) error {
	if raw == "" {
		return errors.New("PUBLIC_BASE_APIが設定されていません")
	}
	if strings.HasPrefix(raw, "//") {
		return fmt.Errorf("PUBLIC_BASE_APIにプロトコル相対URLは指定できません: %q", raw)
	}

	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("PUBLIC_BASE_APIの解析に失敗: %w", err)
	}
	if u.RawQuery != "" || u.Fragment != "" {
		return fmt.Errorf("PUBLIC_BASE_APIにクエリやフラグメントは指定できません: %q", raw)
	}
	if strings.HasPrefix(raw, "/") {
		return nil
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("PUBLIC_BASE_APIはhttpまたはhttpsのURLである必要があります: %q", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("PUBLIC_BASE_APIにホストがありません: %q", raw)
	}
	return nil
}

// ValidateOrigin は公開オリジンがパスを持たないhttp(s)のURLであることを検証する。
func ValidateOrigin(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("PUBLIC_ORIGINの解析に失敗: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("PUBLIC_ORIGINはhttpまたはhttpsのURLである必要があります: %q", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("PUBLIC_ORIGINにホストがありません: %q", raw)
	}
	if (u.Path != "" && u.Path != "/") || u.RawQuery != "" || u.Fragment != "" || u.User != nil {
		return fmt.Errorf("PUBLIC_ORIGINにはスキームとホストのみ指定できます: %q", raw)
	}
	return nil
}
