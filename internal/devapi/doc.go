// Package devapi はローカル開発用のセッションバックエンドを提供する。
//
// 本番のバックエンドの代わりに /user/me を提供し、シェルサーバーの認証ゲートを
// 手元やテストで動かすために使用する。POST /auth/dev-login で開発用ユーザーを
// SQLiteに作成し、署名済みJWTをHttpOnlyのセッションCookieとして発行する。
// 本番環境で使うことは想定していない。
package devapi
