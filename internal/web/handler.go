// Package web serves the summarization form and the session's history.
package web

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"net/http"
	"time"

	"chatsum/internal/domain"
	"chatsum/internal/extract"
	"chatsum/internal/session"
	"chatsum/internal/usecase"
)

const (
	SessionCookie         = "chatsum_session"
	defaultMaxUploadBytes = 32 << 20
	multipartMemory       = 8 << 20
)

//go:embed templates/*.tmpl
var templateFS embed.FS

type Service interface {
	Submit(ctx context.Context, sess *session.Session, in usecase.SubmitInput) usecase.Result
	Clear(sess *session.Session)
	History(sess *session.Session) []domain.ChatTurn
}

type Handler struct {
	svc       Service
	sessions  *session.Store
	maxUpload int64
	page      *template.Template
	mux       *http.ServeMux
}

type pageData struct {
	Text    string
	Notices []usecase.Notice
	Turns   []domain.ChatTurn
}

func NewHandler(svc Service, sessions *session.Store, maxUploadBytes int64) (*Handler, error) {
	if svc == nil {
		return nil, errors.New("web: service must not be nil")
	}
	if sessions == nil {
		return nil, errors.New("web: session store must not be nil")
	}
	if maxUploadBytes <= 0 {
		maxUploadBytes = defaultMaxUploadBytes
	}
	page, err := template.ParseFS(templateFS, "templates/index.html.tmpl")
	if err != nil {
		return nil, fmt.Errorf("web: parse templates: %w", err)
	}

	h := &Handler{
		svc:       svc,
		sessions:  sessions,
		maxUpload: maxUploadBytes,
		page:      page,
		mux:       http.NewServeMux(),
	}
	h.mux.HandleFunc("GET /{$}", h.index)
	h.mux.HandleFunc("POST /summarize", h.summarize)
	h.mux.HandleFunc("POST /clear", h.clear)
	h.mux.HandleFunc("GET /healthz", h.healthz)
	return h, nil
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	defer func() {
		if p := recover(); p != nil {
			slog.ErrorContext(r.Context(), "request panicked", "method", r.Method, "path", r.URL.Path, "panic", p)
			http.Error(rec, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
		slog.InfoContext(r.Context(), "request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}()
	h.mux.ServeHTTP(rec, r)
}

func (h *Handler) index(w http.ResponseWriter, r *http.Request) {
	sess := h.session(w, r)
	h.render(w, r, pageData{Turns: h.svc.History(sess)})
}

func (h *Handler) summarize(w http.ResponseWriter, r *http.Request) {
	sess := h.session(w, r)

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(multipartMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, fmt.Sprintf("upload exceeds %d bytes", tooLarge.Limit), http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "malformed form submission", http.StatusBadRequest)
		return
	}
	if r.MultipartForm != nil {
		defer func() { _ = r.MultipartForm.RemoveAll() }()
	}

	in := usecase.SubmitInput{Text: r.FormValue("text")}
	upload, err := readUpload(r)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to read upload", "err", err)
		http.Error(w, "could not read uploaded file", http.StatusBadRequest)
		return
	}
	in.Upload = upload

	res := h.svc.Submit(r.Context(), sess, in)
	h.render(w, r, pageData{
		Text:    in.Text,
		Notices: res.Notices,
		Turns:   h.svc.History(sess),
	})
}

func (h *Handler) clear(w http.ResponseWriter, r *http.Request) {
	sess := h.session(w, r)
	h.svc.Clear(sess)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *Handler) healthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}

// session resolves the caller's session, issuing a cookie when a new one is
// created.
func (h *Handler) session(w http.ResponseWriter, r *http.Request) *session.Session {
	var id string
	if c, err := r.Cookie(SessionCookie); err == nil {
		id = c.Value
	}
	sess, created := h.sessions.GetOrCreate(id)
	if created {
		http.SetCookie(w, &http.Cookie{
			Name:     SessionCookie,
			Value:    sess.ID,
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
	}
	return sess
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, data pageData) {
	var buf bytes.Buffer
	if err := h.page.Execute(&buf, data); err != nil {
		slog.ErrorContext(r.Context(), "failed to render page", "err", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

// readUpload returns the "file" part of the form, or nil when none was sent.
func readUpload(r *http.Request) (*extract.Upload, error) {
	f, header, err := r.FormFile("file")
	if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("web: read upload %q: %w", header.Filename, err)
	}
	return &extract.Upload{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
