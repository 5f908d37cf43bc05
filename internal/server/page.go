package server

import (
	"bytes"
	_ "embed"
	"html/template"
	"net/http"
	"regexp"
)

//go:embed web/index.html
var indexHTML string

var boldPattern = regexp.MustCompile(`\*\*(.+?)\*\*`)

// inlineMarkdown escapes s and renders **bold** runs.
func inlineMarkdown(s string) template.HTML {
	escaped := template.HTMLEscapeString(s)
	return template.HTML(boldPattern.ReplaceAllString(escaped, "<strong>$1</strong>"))
}

var indexTemplate = template.Must(template.New("index").
	Funcs(template.FuncMap{"md": inlineMarkdown}).
	Parse(indexHTML))

type pageData struct {
	Title      string
	Icon       string
	Caption    string
	Welcome    string
	Flow       string
	Disclaimer string
	APIKeyHdr  string
	ClientKey  bool
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if _, err := s.sessionID(w, r); err != nil {
		s.writeErr(w, err)
		return
	}
	data := pageData{
		Title:      s.script.Title,
		Icon:       s.script.Icon,
		Caption:    s.script.Caption,
		Welcome:    s.script.Welcome,
		Flow:       s.script.Flow,
		Disclaimer: s.script.Disclaimer,
		APIKeyHdr:  APIKeyHeader,
		ClientKey:  s.cfg.AllowClientKey,
	}
	var buf bytes.Buffer
	if err := indexTemplate.Execute(&buf, data); err != nil {
		s.log.Error("failed to render page:", err)
		s.writeError(w, http.StatusInternalServerError, "failed to render page")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}
