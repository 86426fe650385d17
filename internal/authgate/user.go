package authgate

import (
	"bytes"
	"encoding/json"
	"errors"
)

// ErrMalformedUser はユーザー情報がJSONオブジェクトでないことを表す。
var ErrMalformedUser = errors.New("ユーザー情報がJSONオブジェクトではありません")

// User は認証済みユーザーを表す不透明なレコード。
// 形はバックエンドが決めるため解釈せず、受け取ったJSONをそのままページへ渡す。
type User struct {
	raw json.RawMessage
}

// NewUser はJSONオブジェクトからUserを生成する。
func NewUser(raw []byte) (User, error) {
	if !json.Valid(raw) {
		return User{}, ErrMalformedUser
	}
	var u User
	if err := u.UnmarshalJSON(raw); err != nil {
		return User{}, err
	}
	return u, nil
}

// UnmarshalJSON はJSONオブジェクトのみを受け付ける。
// null、配列、スカラー値は ErrMalformedUser となる。
func (u *User) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return ErrMalformedUser
	}
	u.raw = append(u.raw[:0], trimmed...)
	return nil
}

// MarshalJSON は受け取ったJSONをそのまま返す。
func (u User) MarshalJSON() ([]byte, error) {
	if len(u.raw) == 0 {
		return []byte("null"), nil
	}
	return u.raw, nil
}

// Decode はユーザー情報を任意の構造体にデシリアライズする。
func (u User) Decode(v any) error {
	if u.IsZero() {
		return ErrMalformedUser
	}
	return json.Unmarshal(u.raw, v)
}

// IsZero はユーザー情報が空かどうかを返す。
func (u User) IsZero() bool {
	return len(u.raw) == 0
}

// String はユーザー情報のJSON表現を返す。
func (u User) String() string {
	return string(u.raw)
}

// PageData はルートのレンダリングに渡されるページデータ。
type PageData struct {
	// User は現在の認証済みユーザー。
	User User `json:"user"`
}
