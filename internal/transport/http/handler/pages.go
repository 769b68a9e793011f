package handler

import (
	"html/template"
	"log/slog"
	"net/http"
)

const logoURL = "https://raw.githubusercontent.com/EdgeApp/edge-brand-guide/refs/heads/master/Logo/Primary/Edge_Primary_Logo_MintWhite.png"

type page struct {
	Title   string
	Icon    template.HTML
	Heading string
	Color   template.CSS
	Message string
	Logo    string
}

func thankYouPage(msg string) page {
	return page{Title: "Edge Rewards - Verified", Icon: "&#x2705;", Heading: "Thank You!", Color: "#28a745", Message: msg, Logo: logoURL}
}

func errorPage(msg string) page {
	return page{Title: "Edge Rewards - Error", Icon: "&#x26A0;&#xFE0F;", Heading: "Error", Color: "#dc3545", Message: msg, Logo: logoURL}
}

var pageTmpl = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
  <title>{{.Title}}</title>
  <style>
    * { margin: 0; padding: 0; box-sizing: border-box; font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, Helvetica, Arial, sans-serif; }
    body { display: flex; flex-direction: column; min-height: 100vh; background: #f5f7fa; }
    .header { background-color: #0c2550; padding: 1.5rem; display: flex; justify-content: center; }
    .header img { height: 45px; }
    .container { flex: 1; display: flex; flex-direction: column; align-items: center; justify-content: center; text-align: center; max-width: 500px; margin: 0 auto; padding: 40px 20px; }
    .icon { font-size: 64px; margin-bottom: 20px; }
    h1 { color: {{.Color}}; margin-bottom: 16px; font-size: 24px; }
    p { color: #333; font-size: 16px; line-height: 1.6; }
  </style>
</head>
<body>
  <div class="header"><img src="{{.Logo}}" alt="Edge" /></div>
  <div class="container">
    <div class="icon">{{.Icon}}</div>
    <h1>{{.Heading}}</h1>
    <p>{{.Message}}</p>
  </div>
</body>
</html>`))

func renderPage(w http.ResponseWriter, status int, p page) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := pageTmpl.Execute(w, p); err != nil {
		slog.Error("failed to render page", "err", err)
	}
}

func writeServiceErrorPage(w http.ResponseWriter, r *http.Request, err error) {
	slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "err", err)
	renderPage(w, http.StatusInternalServerError, errorPage("An unexpected error occurred"))
}
