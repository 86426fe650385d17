package devapi

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// errUserNotFound はユーザーが存在しないことを表す。
var errUserNotFound = errors.New("ユーザーが見つかりません")

// user は /user/me が返すユーザー情報。
type user struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url"`
	Provider    string `json:"provider"`
}

// userStore はSQLiteに保存されたユーザーを扱う。
type userStore struct {
	db *sql.DB
}

const userColumns = `id, email, display_name, avatar_url, provider`

// getByID はIDでユーザーを取得する。
func (s *userStore) getByID(ctx context.Context, id string) (user, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	return scanUser(row)
}

// getByProvider はプロバイダーとプロバイダー側のIDでユーザーを取得する。
func (s *userStore) getByProvider(ctx context.Context, provider, providerUserID string) (user, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE provider = ? AND provider_user_id = ?`,
		provider, providerUserID)
	return scanUser(row)
}

// create はユーザーを作成する。
func (s *userStore) create(ctx context.Context, u user, providerUserID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, provider, provider_user_id, email, display_name, avatar_url) VALUES (?, ?, ?, ?, ?, ?)`,
		u.ID, u.Provider, providerUserID, u.Email, u.DisplayName, u.AvatarURL)
	if err != nil {
		return fmt.Errorf("ユーザーの作成に失敗: %w", err)
	}
	return nil
}

// touchLastLogin は最終ログイン日時を更新する。
func (s *userStore) touchLastLogin(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `UPDATE users SET last_login_at = datetime('now') WHERE id = ?`, id); err != nil {
		return fmt.Errorf("最終ログイン日時の更新に失敗: %w", err)
	}
	return nil
}

func scanUser(row *sql.Row) (user, error) {
	var u user
	if err := row.Scan(&u.ID, &u.Email, &u.DisplayName, &u.AvatarURL, &u.Provider); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return user{}, errUserNotFound
		}
		return user{}, fmt.Errorf("ユーザーの取得に失敗: %w", err)
	}
	return u, nil
}
