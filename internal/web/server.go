// Package web is the interactive front end: a question form over the
// execution façade, with optional Auth0 login and a per-user history
// listing. It never touches extraction or persistence logic directly.
package web

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"net/http"

	"research-agent/internal/config"
	"research-agent/internal/history"
	"research-agent/internal/logger"
	"research-agent/internal/runner"
)

const historyPageSize = 50

// QuestionRunner is the façade dependency of the UI.
type QuestionRunner interface {
	Run(ctx context.Context, question, userID string, mode runner.Mode) (runner.Result, error)
}

// Server serves the interactive page.
type Server struct {
	runner   QuestionRunner
	store    history.Store
	sessions *SessionStore
	auth     *Authenticator // nil when login is not configured
	admins   map[string]bool
	mux      *http.ServeMux
	tmpl     *template.Template
	addr     string
}

// New builds the server from configuration. When Auth0 is not
// configured the page runs open with anonymous identity.
func New(cfg config.WebConfig, qr QuestionRunner, store history.Store) *Server {
	s := &Server{
		runner:   qr,
		store:    store,
		sessions: NewSessionStore(),
		admins:   make(map[string]bool),
		mux:      http.NewServeMux(),
		tmpl: template.Must(template.New("page").
			Funcs(template.FuncMap{"pct": ConfidencePercent}).
			Parse(pageTemplate)),
		addr: cfg.Host + ":" + cfg.Port,
	}
	if cfg.Auth0.Enabled() {
		s.auth = NewAuthenticator(cfg.Auth0)
	}
	for _, sub := range cfg.AdminUsers {
		s.admins[sub] = true
	}

	s.mux.HandleFunc("GET /{$}", s.handleIndex)
	s.mux.HandleFunc("POST /ask", s.handleAsk)
	s.mux.HandleFunc("GET /login", s.handleLogin)
	s.mux.HandleFunc("GET /callback", s.handleCallback)
	s.mux.HandleFunc("GET /logout", s.handleLogout)
	return s
}

// Handler exposes the routes for testing.
func (s *Server) Handler() http.Handler { return s.mux }

// ListenAndServe blocks serving the UI.
func (s *Server) ListenAndServe() error {
	logger.L.Info("starting web UI", "address", s.addr)
	return http.ListenAndServe(s.addr, s.mux)
}

// pageData feeds the single page template.
type pageData struct {
	LoginRequired bool
	UserName      string
	Admin         bool
	Question      string
	Result        *runner.Result
	ResultError   string
	History       []history.Record
	HistoryError  string
}

// currentSession resolves the request identity. ok is false only when a
// login is required and missing.
func (s *Server) currentSession(r *http.Request) (Session, bool) {
	if s.auth == nil {
		return Session{Name: "guest"}, true
	}
	return s.sessions.FromRequest(r)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.currentSession(r)
	if !ok {
		s.render(w, pageData{LoginRequired: true})
		return
	}
	s.render(w, s.pageFor(sess, "", nil, ""))
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.currentSession(r)
	if !ok {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	question := r.FormValue("question")
	mode := runner.ModeFull
	if r.FormValue("mode") == "fast" {
		mode = runner.ModeFast
	}

	res, err := s.runner.Run(r.Context(), question, sess.UserID, mode)
	if err != nil {
		if errors.Is(err, runner.ErrEmptyQuestion) {
			s.render(w, s.pageFor(sess, question, nil, "Please enter a question."))
			return
		}
		logger.L.Error("run failed", "error", err)
		s.render(w, s.pageFor(sess, question, nil, "Something went wrong. Please try again."))
		return
	}
	s.render(w, s.pageFor(sess, question, &res, ""))
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if s.auth == nil {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, s.auth.LoginURL(), http.StatusTemporaryRedirect)
}

func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	if s.auth == nil {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	profile, err := s.auth.HandleCallback(r.Context(), r.URL.Query().Get("state"), r.URL.Query().Get("code"))
	if err != nil {
		logger.L.Warn("login callback rejected", "error", err)
		http.Error(w, "login failed", http.StatusForbidden)
		return
	}
	sess := s.sessions.Create(profile.Sub, profile.Name)
	SetCookie(w, sess)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(sessionCookie); err == nil {
		s.sessions.Delete(c.Value)
	}
	ClearCookie(w)
	if s.auth != nil {
		returnTo := "http://" + r.Host + "/"
		http.Redirect(w, r, s.auth.LogoutURL(returnTo), http.StatusTemporaryRedirect)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// pageFor assembles the authenticated page: form state plus the
// viewer's history (or everyone's, for admins).
func (s *Server) pageFor(sess Session, question string, res *runner.Result, resultErr string) pageData {
	data := pageData{
		UserName:    sess.Name,
		Admin:       s.admins[sess.UserID],
		Question:    question,
		Result:      res,
		ResultError: resultErr,
	}

	opts := history.ListOptions{UserID: sess.UserID, Limit: historyPageSize}
	if data.Admin {
		opts.UserID = ""
	}
	recs, err := s.store.List(opts)
	if err != nil {
		logger.L.Error("failed to load history", "error", err)
		data.HistoryError = "History is unavailable right now."
	} else {
		data.History = recs
	}
	return data
}

func (s *Server) render(w http.ResponseWriter, data pageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.tmpl.Execute(w, data); err != nil {
		logger.L.Error("template render failed", "error", err)
	}
}

// ConfidencePercent formats a confidence for display.
func ConfidencePercent(c float64) string {
	return fmt.Sprintf("%.0f%%", c*100)
}

const pageTemplate = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Web Research Agent</title>
<style>
body { font-family: sans-serif; max-width: 46rem; margin: 2rem auto; padding: 0 1rem; }
textarea { width: 100%; }
.result { background: #f3f7f3; padding: 1rem; border-radius: 4px; }
.error { background: #fbeaea; padding: 1rem; border-radius: 4px; }
.history-item { border-bottom: 1px solid #ddd; padding: .5rem 0; }
.meta { color: #666; font-size: .85rem; }
</style>
</head>
<body>
{{if .LoginRequired}}
<h1>Please sign in</h1>
<p>You must log in to use the Web Research Agent.</p>
<p><a href="/login">Log in</a></p>
{{else}}
<h1>Web Research Agent</h1>
<p>Welcome, <strong>{{.UserName}}</strong>. <a href="/logout">Logout</a></p>
<p>Ask a question and get researched answers using web search.</p>
<form method="post" action="/ask">
<textarea name="question" rows="3" placeholder="Enter your research question">{{.Question}}</textarea>
<p>
<label><input type="checkbox" name="mode" value="fast"> Fast mode (no web search)</label>
<button type="submit">Get answer</button>
</p>
</form>
{{if .ResultError}}
<div class="error">{{.ResultError}}</div>
{{end}}
{{with .Result}}
<div class="result">
<h2>Answer</h2>
<p>{{.Answer}}</p>
{{if .Sources}}
<h3>Sources</h3>
<ul>
{{range .Sources}}<li><a href="{{.}}">{{.}}</a></li>{{end}}
</ul>
{{end}}
<p class="meta">Confidence: {{pct .Confidence}}</p>
</div>
{{end}}
<h2>Past Q&amp;A</h2>
{{if .HistoryError}}
<div class="error">{{.HistoryError}}</div>
{{else if .History}}
{{range .History}}
<div class="history-item">
<p><strong>{{.Question}}</strong></p>
<p>{{.Answer}}</p>
<p class="meta">{{.Timestamp.Format "2006-01-02 15:04"}}{{if .UserID}} &middot; {{.UserID}}{{end}}</p>
</div>
{{end}}
{{else}}
<p>No history found.</p>
{{end}}
{{end}}
</body>
</html>`
