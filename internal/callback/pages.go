package callback

import (
	"bytes"
	"html/template"
)

const pageHTML = `<!DOCTYPE html>
<html>
<head>
    <meta charset="utf-8">
    <title>{{.Title}}</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; max-width: 480px; margin: 80px auto; padding: 20px; text-align: center; color: #202124; }
        h1 { font-size: 1.4em; }
        h1.success { color: #188038; }
        h1.failure { color: #d93025; }
        p { color: #5f6368; }
    </style>
</head>
<body>
    <h1 class="{{.Class}}">{{.Title}}</h1>
    <p>{{.Message}}</p>
</body>
</html>`

var pageTemplate = template.Must(template.New("callback").Parse(pageHTML))

type page struct {
	Title   string
	Message string
	Class   string
}

func successPage() string {
	return renderPage(page{
		Title:   "Authentication successful",
		Message: "Gmail access has been granted. You can close this window and return to the application.",
		Class:   "success",
	})
}

func failurePage(reason string) string {
	return renderPage(page{
		Title:   "Authentication failed",
		Message: reason + " Please try again from the application.",
		Class:   "failure",
	})
}

func renderPage(p page) string {
	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, p); err != nil {
		return p.Title
	}
	return buf.String()
}
