// 開発用バックエンドのエントリポイント。
// 開発用ログインでセッションCookieを発行し、/user/me で現在のユーザーを返す。
// 本番のセッションバックエンドの代わりにローカル開発でのみ使う。
package main

import (
	"log"

	"github.com/joho/godotenv"
	"github.com/nao1215/authgate/internal/config"
	"github.com/nao1215/authgate/internal/devapi"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf(".envを読み込みませんでした: %v", err)
	}

	cfg, err := config.LoadDevAPI()
	if err != nil {
		log.Fatalf("設定の読み込みに失敗: %v", err)
	}

	server, err := devapi.NewServer(cfg)
	if err != nil {
		log.Fatalf("開発用バックエンドの初期化に失敗: %v", err)
	}
	log.Printf("開発用バックエンドを起動します: :%s", cfg.Port)
	if err := server.Run(); err != nil {
		// log.Fatalf はdeferを実行しないため先に閉じる
		if cerr := server.Close(); cerr != nil {
			log.Printf("データベース接続のクローズに失敗: %v", cerr)
		}
		log.Fatalf("開発用バックエンドの起動に失敗: %v", err)
	}
}
