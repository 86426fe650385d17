package devapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/authgate/internal/config"
	"github.com/nao1215/authgate/pkg/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// testJWTSecret はテスト用のJWT署名秘密鍵。
const testJWTSecret = "test-secret-key"

// newTestServer はインメモリSQLiteを使うテスト用サーバーを生成する。
func newTestServer(t *testing.T) *Server {
	t.Helper()

	s, err := NewServer(config.DevAPI{
		Port:          "0",
		DatabasePath:  ":memory:",
		JWTSecret:     testJWTSecret,
		SessionCookie: "session",
		SessionTTL:    time.Hour,
		CORSOrigins:   []string{"http://localhost:1420"},
	})
	if err != nil {
		t.Fatalf("サーバーの生成に失敗: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// devLogin は開発用ログインを行い、発行されたセッションCookieを返す。
func devLogin(t *testing.T, s *Server, body string) *http.Cookie {
	t.Helper()

	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(http.MethodPost, "/auth/dev-login", nil)
	} else {
		req = httptest.NewRequest(http.MethodPost, "/auth/dev-login", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("dev-loginのステータスコード = %d, want %d, body=%s", w.Code, http.StatusOK, w.Body.String())
	}
	for _, c := range w.Result().Cookies() {
		if c.Name == "session" {
			return c
		}
	}
	t.Fatal("セッションCookieが発行されていない")
	return nil
}

// getMe はCookie付きで /user/me を呼び出す。
func getMe(s *Server, cookie *http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/user/me", nil)
	if cookie != nil {
		req.AddCookie(&http.Cookie{Name: cookie.Name, Value: cookie.Value})
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

// TestHandleDevLogin は開発用ログインハンドラのテスト。
func TestHandleDevLogin(t *testing.T) {
	t.Parallel()

	t.Run("HttpOnlyのセッションCookieが発行されること", func(t *testing.T) {
		t.Parallel()

		s := newTestServer(t)
		cookie := devLogin(t, s, "")

		if !cookie.HttpOnly {
			t.Error("セッションCookieがHttpOnlyではない")
		}
		if cookie.Path != "/" {
			t.Errorf("Path = %q, want %q", cookie.Path, "/")
		}
		if cookie.MaxAge != 3600 {
			t.Errorf("MaxAge = %d, want %d", cookie.MaxAge, 3600)
		}
		if cookie.SameSite != http.SameSiteLaxMode {
			t.Errorf("SameSite = %v, want Lax", cookie.SameSite)
		}
	})

	t.Run("同じメールアドレスでは同じユーザーが使われること", func(t *testing.T) {
		t.Parallel()

		s := newTestServer(t)
		first := devLogin(t, s, `{"email":"ada@example.com","display_name":"Ada"}`)
		second := devLogin(t, s, `{"email":"ada@example.com"}`)

		var u1, u2 user
		if err := json.Unmarshal(getMe(s, first).Body.Bytes(), &u1); err != nil {
			t.Fatalf("レスポンスのパースに失敗: %v", err)
		}
		if err := json.Unmarshal(getMe(s, second).Body.Bytes(), &u2); err != nil {
			t.Fatalf("レスポンスのパースに失敗: %v", err)
		}
		if u1.ID == "" || u1.ID != u2.ID {
			t.Errorf("ユーザーIDが一致しない: %q, %q", u1.ID, u2.ID)
		}
		if u1.DisplayName != "Ada" {
			t.Errorf("DisplayName = %q, want %q", u1.DisplayName, "Ada")
		}
	})

	t.Run("不正なJSONボディで400が返ること", func(t *testing.T) {
		t.Parallel()

		s := newTestServer(t)
		req := httptest.NewRequest(http.MethodPost, "/auth/dev-login", strings.NewReader(`{broken`))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		s.router.ServeHTTP(w, req)

		if w.Code != http.StatusBadRequest {
			t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusBadRequest)
		}
	})
}

// TestHandleGetCurrentUser は /user/me ハンドラのテスト。
func TestHandleGetCurrentUser(t *testing.T) {
	t.Parallel()

	t.Run("有効なセッションでユーザー情報が返ること", func(t *testing.T) {
		t.Parallel()

		s := newTestServer(t)
		cookie := devLogin(t, s, "")

		w := getMe(s, cookie)
		if w.Code != http.StatusOK {
			t.Fatalf("ステータスコード = %d, want %d", w.Code, http.StatusOK)
		}

		var u user
		if err := json.Unmarshal(w.Body.Bytes(), &u); err != nil {
			t.Fatalf("レスポンスのパースに失敗: %v", err)
		}
		if u.Email != defaultDevEmail {
			t.Errorf("Email = %q, want %q", u.Email, defaultDevEmail)
		}
		if u.Provider != devProvider {
			t.Errorf("Provider = %q, want %q", u.Provider, devProvider)
		}
	})

	t.Run("Cookieが無い場合401が返ること", func(t *testing.T) {
		t.Parallel()

		s := newTestServer(t)
		if w := getMe(s, nil); w.Code != http.StatusUnauthorized {
			t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusUnauthorized)
		}
	})

	t.Run("存在しないユーザーのセッションで401が返ること", func(t *testing.T) {
		t.Parallel()

		s := newTestServer(t)
		token, err := middleware.GenerateSessionToken(testJWTSecret, "deleted-user", "gone@example.com", time.Hour)
		if err != nil {
			t.Fatalf("トークン生成に失敗: %v", err)
		}

		w := getMe(s, &http.Cookie{Name: "session", Value: token})
		if w.Code != http.StatusUnauthorized {
			t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusUnauthorized)
		}
	})
}

// TestHandleLogout はログアウトハンドラのテスト。
func TestHandleLogout(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Fatalf("ステータスコード = %d, want %d", w.Code, http.StatusNoContent)
	}
	cookies := w.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != "session" || cookies[0].MaxAge >= 0 {
		t.Errorf("セッションCookieが削除されていない: %+v", cookies)
	}
}

// TestHealth はヘルスチェックのテスト。
func TestHealth(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusOK)
	}
}
