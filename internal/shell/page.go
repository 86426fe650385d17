package shell

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"strings"

	"github.com/nao1215/authgate/internal/authgate"
)

// fallbackPage はSPAのエントリポイント。事前レンダリングされていないルートで使う。
const fallbackPage = "index.html"

// pageDataScriptID はページデータを埋め込むscript要素のID。
const pageDataScriptID = "page-data"

// errPageNotFound は対応するHTMLが存在しないことを表す。
var errPageNotFound = errors.New("ページが見つかりません")

// pageCandidates はURLパスに対応するHTMLファイルの候補を優先順に返す。
// "/settings" は settings.html、settings/index.html、index.html の順に探す。
func pageCandidates(urlPath string) []string {
	name := strings.Trim(path.Clean("/"+urlPath), "/")
	if name == "" {
		return []string{fallbackPage}
	}
	if path.Ext(name) == ".html" {
		return []string{name, fallbackPage}
	}
	return []string{name + ".html", path.Join(name, "index.html"), fallbackPage}
}

// readPage はURLパスに対応するHTMLを読み込む。
func readPage(pages fs.FS, urlPath string) ([]byte, error) {
	for _, name := range pageCandidates(urlPath) {
		body, err := fs.ReadFile(pages, name)
		if err == nil {
			return body, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("ページの読み込みに失敗: name=%s: %w", name, err)
		}
	}
	return nil, errPageNotFound
}

// injectPageData はページデータをJSONのscript要素としてHTMLに埋め込む。
// </head> の直前に挿入し、見つからない場合は先頭に置く。
func injectPageData(page []byte, data authgate.PageData) ([]byte, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("ページデータのシリアライズに失敗: %w", err)
	}

	var script bytes.Buffer
	script.WriteString(`<script id="` + pageDataScriptID + `" type="application/json">`)
	script.Write(payload)
	script.WriteString(`</script>`)

	idx := bytes.LastIndex(page, []byte("</head>"))
	if idx < 0 {
		return append(script.Bytes(), page...), nil
	}

	out := make([]byte, 0, len(page)+script.Len())
	out = append(out, page[:idx]...)
	out = append(out, script.Bytes()...)
	out = append(out, page[idx:]...)
	return out, nil
}
