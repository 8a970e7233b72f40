package view

import (
	"embed"
	"html/template"
	"io"
	"net/url"
	"time"
)

//go:embed templates/page.html
var templateFS embed.FS

var pageTemplate = template.Must(
	template.New("page.html").
		Funcs(template.FuncMap{"pathEscape": url.PathEscape}).
		ParseFS(templateFS, "templates/page.html"),
)

type pageData struct {
	B             Bindings
	BannerVisible bool
	BannerMillis  int64
}

// RenderPage writes the full widget page for b as seen at now.
func RenderPage(w io.Writer, b Bindings, now time.Time) error {
	data := pageData{B: b, BannerVisible: b.Banner.Visible(now)}
	if data.BannerVisible {
		data.BannerMillis = b.Banner.ExpiresAt.Sub(now).Milliseconds()
	}
	return pageTemplate.Execute(w, data)
}
