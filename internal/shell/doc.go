// Package shell はデスクトップシェル向けフロントエンドを配信するHTTPサーバーを提供する。
//
// 事前レンダリング済み（SSG）のフロントエンドを配信し、トップレベルの
// ナビゲーションごとに認証ゲートを実行する。認証済みであればユーザー情報を
// ページに埋め込んで返し、未認証であればログインページへ302で転送する。
// ログインページと静的アセットはゲートを通さずに配信する。
package shell
