// Package httpclient はバックエンドAPIとのJSON通信を行うクライアントを提供する。
//
// 認証ゲートが現在のユーザーを取得する際に使用する。ナビゲーションの
// Cookieをコンテキスト経由で引き渡し、2xx以外の応答は StatusError として返す。
package httpclient
