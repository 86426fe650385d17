package authgate

import (
	"fmt"
	"strings"
)

// FailurePolicy は通信エラー時の振る舞いを表す。
type FailurePolicy int

const (
	// PropagateFailure は通信エラーを呼び出し元へエラーとして返す。
	PropagateFailure FailurePolicy = iota
	// RedirectOnFailure は通信エラーを未認証と同様にログインへ誘導する。
	RedirectOnFailure
)

// ParseFailurePolicy は "propagate" または "redirect" を解釈する。
func ParseFailurePolicy(s string) (FailurePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "propagate":
		return PropagateFailure, nil
	case "redirect":
		return RedirectOnFailure, nil
	default:
		return PropagateFailure, fmt.Errorf("不明な通信エラーポリシー: %q", s)
	}
}

// UnmarshalText は環境変数からの読み込みに使われる。
func (p *FailurePolicy) UnmarshalText(text []byte) error {
	parsed, err := ParseFailurePolicy(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// String はポリシー名を返す。
func (p FailurePolicy) String() string {
	switch p {
	case RedirectOnFailure:
		return "redirect"
	default:
		return "propagate"
	}
}
