// Package authgate はトップレベルのナビゲーション前に実行される認証ゲートを提供する。
//
// ページのレンダリング前にバックエンドの /user/me をCookie付きで取得し、
// 成功すればユーザーをページデータとして返し、失敗すればログインページへの
// 誘導を返す。実際の転送はルーター側が行い、判断と効果を分離している。
package authgate
