// Package middleware はGinベースのHTTPサーバーで使用する共通ミドルウェアを提供する。
//
// セッションCookieの検証、パニックリカバリ、Cookie付きのCORS設定など、
// シェルサーバーと開発用バックエンドで共通して使用するミドルウェアを含む。
package middleware
