package authgate

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/nao1215/authgate/pkg/httpclient"
)

// fakeFetcher はテスト用のFetcher。
type fakeFetcher struct {
	// body は成功時に返すJSON。
	body string
	// err はGetJSONが返すエラー。
	err error
	// calls はGetJSONの呼び出し回数。
	calls atomic.Int32
	// path は最後に要求されたパス。
	path string
}

func (f *fakeFetcher) GetJSON(_ context.Context, path string, result any) error {
	f.calls.Add(1)
	f.path = path
	if f.err != nil {
		return f.err
	}
	return json.Unmarshal([]byte(f.body), result)
}

// testUser はテストで使うユーザーの形。
type testUser struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// newBackend は /user/me に固定の応答を返すテスト用バックエンドを生成する。
func newBackend(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/user/me" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(ts.Close)
	return ts
}

// assertRedirectToLogin はログインへの302誘導であることを検証する。
func assertRedirectToLogin(t *testing.T, outcome Outcome, err error) {
	t.Helper()

	if err != nil {
		t.Fatalf("Load()でエラーが発生: %v", err)
	}
	if outcome.Kind != Unauthenticated {
		t.Fatalf("Kind = %v, want Unauthenticated", outcome.Kind)
	}
	if outcome.Redirect.Location != "/login" {
		t.Errorf("Location = %q, want %q", outcome.Redirect.Location, "/login")
	}
	if outcome.Redirect.Status != http.StatusFound {
		t.Errorf("Status = %d, want %d", outcome.Redirect.Status, http.StatusFound)
	}
	if !outcome.User.IsZero() {
		t.Errorf("未認証の結果にユーザーが含まれている: %s", outcome.User)
	}
	if _, ok := outcome.PageData(); ok {
		t.Error("未認証の結果からページデータが取得できてしまう")
	}
}

// TestLoad は実際のHTTP通信を通してLoadを検証する。
func TestLoad(t *testing.T) {
	t.Parallel()

	t.Run("200でユーザーが返されページデータに含まれること", func(t *testing.T) {
		t.Parallel()

		ts := newBackend(t, http.StatusOK, `{"id":"u1","name":"Ada"}`)
		loader := NewLoader(httpclient.New(ts.URL))

		outcome, err := loader.Load(context.Background())
		if err != nil {
			t.Fatalf("Load()でエラーが発生: %v", err)
		}
		if outcome.Kind != Authenticated {
			t.Fatalf("Kind = %v, want Authenticated", outcome.Kind)
		}

		data, ok := outcome.PageData()
		if !ok {
			t.Fatal("ページデータが取得できない")
		}
		var user testUser
		if err := data.User.Decode(&user); err != nil {
			t.Fatalf("ユーザーのデコードに失敗: %v", err)
		}
		if user.ID != "u1" || user.Name != "Ada" {
			t.Errorf("user = %+v, want {ID:u1 Name:Ada}", user)
		}

		encoded, err := json.Marshal(data)
		if err != nil {
			t.Fatalf("ページデータのシリアライズに失敗: %v", err)
		}
		if string(encoded) != `{"user":{"id":"u1","name":"Ada"}}` {
			t.Errorf("page data = %s", encoded)
		}
	})

	t.Run("2xxであれば200以外でも認証済みとなること", func(t *testing.T) {
		t.Parallel()

		ts := newBackend(t, http.StatusAccepted, `{"id":"u2"}`)
		loader := NewLoader(httpclient.New(ts.URL))

		outcome, err := loader.Load(context.Background())
		if err != nil {
			t.Fatalf("Load()でエラーが発生: %v", err)
		}
		if outcome.Kind != Authenticated {
			t.Errorf("Kind = %v, want Authenticated", outcome.Kind)
		}
	})

	t.Run("401でログインへ誘導されること", func(t *testing.T) {
		t.Parallel()

		ts := newBackend(t, http.StatusUnauthorized, `{}`)
		loader := NewLoader(httpclient.New(ts.URL))

		outcome, err := loader.Load(context.Background())
		assertRedirectToLogin(t, outcome, err)
	})

	t.Run("500でもログインへ誘導されること", func(t *testing.T) {
		t.Parallel()

		ts := newBackend(t, http.StatusInternalServerError, ``)
		loader := NewLoader(httpclient.New(ts.URL))

		outcome, err := loader.Load(context.Background())
		assertRedirectToLogin(t, outcome, err)
	})

	t.Run("3xxでもログインへ誘導されること", func(t *testing.T) {
		t.Parallel()

		ts := newBackend(t, http.StatusSeeOther, ``)
		loader := NewLoader(httpclient.New(ts.URL))

		outcome, err := loader.Load(context.Background())
		assertRedirectToLogin(t, outcome, err)
	})

	t.Run("接続エラーはデフォルトでエラーとして返ること", func(t *testing.T) {
		t.Parallel()

		loader := NewLoader(httpclient.New("http://127.0.0.1:1"))

		outcome, err := loader.Load(context.Background())
		if err == nil {
			t.Fatal("Load()がエラーを返すべきだが、nilが返った")
		}
		if outcome.Kind != 0 {
			t.Errorf("Kind = %v, want 0", outcome.Kind)
		}
	})

	t.Run("RedirectOnFailureでは接続エラーでログインへ誘導されること", func(t *testing.T) {
		t.Parallel()

		loader := NewLoader(httpclient.New("http://127.0.0.1:1"), WithFailurePolicy(RedirectOnFailure))

		outcome, err := loader.Load(context.Background())
		assertRedirectToLogin(t, outcome, err)
	})

	t.Run("2xxでもJSONオブジェクトでなければ通信エラー扱いになること", func(t *testing.T) {
		t.Parallel()

		for _, body := range []string{`null`, `[]`, `"user"`, `{broken`} {
			ts := newBackend(t, http.StatusOK, body)

			_, err := NewLoader(httpclient.New(ts.URL)).Load(context.Background())
			if err == nil {
				t.Errorf("body=%s: Load()がエラーを返すべきだが、nilが返った", body)
			}

			outcome, err := NewLoader(httpclient.New(ts.URL), WithFailurePolicy(RedirectOnFailure)).Load(context.Background())
			if err != nil || outcome.Kind != Unauthenticated {
				t.Errorf("body=%s: Kind = %v, err = %v, want Unauthenticated", body, outcome.Kind, err)
			}
		}
	})

	t.Run("キャンセル済みのコンテキストはポリシーにかかわらずエラーになること", func(t *testing.T) {
		t.Parallel()

		ts := newBackend(t, http.StatusOK, `{"id":"u1"}`)
		loader := NewLoader(httpclient.New(ts.URL), WithFailurePolicy(RedirectOnFailure))

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := loader.Load(ctx)
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("context.Canceledが返るべきだが %v が返った", err)
		}
	})

	t.Run("繰り返しのナビゲーションで毎回問い合わせること", func(t *testing.T) {
		t.Parallel()

		var hits atomic.Int32
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			hits.Add(1)
			w.WriteHeader(http.StatusUnauthorized)
		}))
		defer ts.Close()

		loader := NewLoader(httpclient.New(ts.URL))
		for range 3 {
			outcome, err := loader.Load(context.Background())
			assertRedirectToLogin(t, outcome, err)
		}
		if got := hits.Load(); got != 3 {
			t.Errorf("問い合わせ回数 = %d, want 3", got)
		}
	})
}

// TestLoadWithFakeFetcher はFetcherを差し替えてLoadを検証する。
func TestLoadWithFakeFetcher(t *testing.T) {
	t.Parallel()

	t.Run("/user/meを要求すること", func(t *testing.T) {
		t.Parallel()

		f := &fakeFetcher{body: `{"id":"u1"}`}
		if _, err := NewLoader(f).Load(context.Background()); err != nil {
			t.Fatalf("Load()でエラーが発生: %v", err)
		}
		if f.path != "/user/me" {
			t.Errorf("path = %q, want %q", f.path, "/user/me")
		}
		if got := f.calls.Load(); got != 1 {
			t.Errorf("呼び出し回数 = %d, want 1", got)
		}
	})

	t.Run("ログインパスを変更できること", func(t *testing.T) {
		t.Parallel()

		f := &fakeFetcher{err: &httpclient.StatusError{StatusCode: http.StatusForbidden}}
		loader := NewLoader(f, WithLoginPath("/signin"))

		outcome, err := loader.Load(context.Background())
		if err != nil {
			t.Fatalf("Load()でエラーが発生: %v", err)
		}
		if outcome.Redirect.Location != "/signin" {
			t.Errorf("Location = %q, want %q", outcome.Redirect.Location, "/signin")
		}
		if loader.LoginPath() != "/signin" {
			t.Errorf("LoginPath() = %q, want %q", loader.LoginPath(), "/signin")
		}
	})

	t.Run("ラップされたStatusErrorも未認証として扱うこと", func(t *testing.T) {
		t.Parallel()

		wrapped := errors.Join(errors.New("upstream"), &httpclient.StatusError{StatusCode: http.StatusUnauthorized})
		f := &fakeFetcher{err: wrapped}

		outcome, err := NewLoader(f).Load(context.Background())
		assertRedirectToLogin(t, outcome, err)
	})

	t.Run("エラーを返さずにユーザーが空の場合は通信エラー扱いになること", func(t *testing.T) {
		t.Parallel()

		loader := NewLoader(emptyFetcher{})

		_, err := loader.Load(context.Background())
		if !errors.Is(err, ErrMalformedUser) {
			t.Errorf("ErrMalformedUserが返るべきだが %v が返った", err)
		}
	})
}

// emptyFetcher は何もデコードせずに成功を返すFetcher。
type emptyFetcher struct{}

func (emptyFetcher) GetJSON(context.Context, string, any) error { return nil }
