// デスクトップシェル向けフロントエンドサーバーのエントリポイント。
// 事前レンダリング済みのフロントエンドを配信し、ナビゲーションごとに
// バックエンドの /user/me で認証状態を確認する。未認証であればログインへ転送する。
package main

import (
	"log"

	"github.com/joho/godotenv"
	"github.com/nao1215/authgate/internal/config"
	"github.com/nao1215/authgate/internal/shell"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf(".envを読み込みませんでした: %v", err)
	}

	cfg, err := config.LoadShell()
	if err != nil {
		log.Fatalf("設定の読み込みに失敗: %v", err)
	}

	server, err := shell.NewServer(cfg)
	if err != nil {
		log.Fatalf("シェルサーバーの初期化に失敗: %v", err)
	}

	log.Printf("シェルサーバーを起動します: :%s", cfg.Port)
	if err := server.Run(); err != nil {
		log.Fatalf("シェルサーバーの起動に失敗: %v", err)
	}
}
