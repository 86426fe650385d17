package authgate

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/nao1215/authgate/pkg/httpclient"
)

const (
	// userPath は現在のユーザーを返すバックエンドAPIのパス。
	userPath = "/user/me"
	// DefaultLoginPath は未認証時の誘導先。
	DefaultLoginPath = "/login"
)

// Fetcher はバックエンドAPIからJSONを取得する機能。
// 資格情報（Cookie）はコンテキスト経由で渡される。
type Fetcher interface {
	GetJSON(ctx context.Context, path string, result any) error
}

// Kind は読み込み結果の種別。
type Kind int

const (
	// Authenticated は有効なセッションが確認できたことを表す。
	Authenticated Kind = iota + 1
	// Unauthenticated はログインページへ誘導すべきことを表す。
	Unauthenticated
)

// Redirect はナビゲーションの転送先。
type Redirect struct {
	// Location は転送先のパス。
	Location string
	// Status は転送に使うHTTPステータスコード。
	Status int
}

// Outcome は認証ゲートの読み込み結果。
// KindがAuthenticatedの場合はUserが、Unauthenticatedの場合はRedirectが有効。
type Outcome struct {
	Kind     Kind
	User     User
	Redirect Redirect
}

// PageData は認証済みの場合にページデータを返す。
func (o Outcome) PageData() (PageData, bool) {
	if o.Kind != Authenticated {
		return PageData{}, false
	}
	return PageData{User: o.User}, true
}

// Loader はトップレベルのナビゲーションごとに現在のユーザーを解決する。
// ユーザー情報はキャッシュせず、呼び出しのたびにバックエンドへ問い合わせる。
type Loader struct {
	fetcher   Fetcher
	policy    FailurePolicy
	loginPath string
}

// Option はLoaderの生成オプション。
type Option func(*Loader)

// WithFailurePolicy は通信エラー時のポリシーを設定する。
func WithFailurePolicy(p FailurePolicy) Option {
	return func(l *Loader) {
		l.policy = p
	}
}

// WithLoginPath は未認証時の誘導先を設定する。
func WithLoginPath(path string) Option {
	return func(l *Loader) {
		if path != "" {
			l.loginPath = path
		}
	}
}

// NewLoader は新しいLoaderを生成する。
func NewLoader(fetcher Fetcher, opts ...Option) *Loader {
	l := &Loader{
		fetcher:   fetcher,
		policy:    PropagateFailure,
		loginPath: DefaultLoginPath,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// LoginPath は未認証時の誘導先を返す。
func (l *Loader) LoginPath() string {
	return l.loginPath
}

// Load は現在のユーザーを取得し、ページデータかログインへの誘導を返す。
//
// 2xx以外の応答はすべて未認証として扱う。通信エラーはポリシーに従い、
// PropagateFailureならエラーを返し、RedirectOnFailureなら未認証として扱う。
// コンテキストが終了している場合はポリシーにかかわらずエラーを返す。
func (l *Loader) Load(ctx context.Context) (Outcome, error) {
	var user User
	err := l.fetcher.GetJSON(ctx, userPath, &user)
	if err == nil && user.IsZero() {
		err = ErrMalformedUser
	}
	if err == nil {
		return Outcome{Kind: Authenticated, User: user}, nil
	}

	var statusErr *httpclient.StatusError
	if errors.As(err, &statusErr) {
		log.Printf("[AuthGate] 未認証のためログインへ誘導します: status=%d", statusErr.StatusCode)
		return l.unauthenticated(), nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return Outcome{}, fmt.Errorf("ナビゲーションが中断されました: %w", ctxErr)
	}

	if l.policy == RedirectOnFailure {
		log.Printf("[AuthGate] 通信エラーのためログインへ誘導します: %v", err)
		return l.unauthenticated(), nil
	}
	return Outcome{}, fmt.Errorf("現在のユーザーの取得に失敗: %w", err)
}

// unauthenticated はログインページへの誘導結果を生成する。
func (l *Loader) unauthenticated() Outcome {
	return Outcome{
		Kind: Unauthenticated,
		Redirect: Redirect{
			Location: l.loginPath,
			Status:   http.StatusFound,
		},
	}
}
