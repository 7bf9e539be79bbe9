// Package demosrv implements the server side of the external-server
// protocol: a reference implementation the client is tested against
// and a starting point for real grading-server integrations.
package demosrv

import (
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v2"
)

type Config struct {
	Secret        string
	HashAlgorithm string // default sha256

	// ReplayWindow bounds how far a request timestamp may drift from
	// server time. Default 5 minutes.
	ReplayWindow time.Duration

	RequireGroupInfo bool

	// Bearer-token verification for servers registered with oauth2 or
	// jwt auth. RequireBearer without a JWTKey rejects everything.
	RequireBearer    bool
	JWTKey           []byte
	ClientID         string
	ClientSecretHash string // bcrypt hash of the client secret
	TokenTTL         time.Duration
}

func (c Config) hashAlgorithm() string {
	if c.HashAlgorithm == "" {
		return "sha256"
	}
	return c.HashAlgorithm
}

func (c Config) replayWindow() time.Duration {
	if c.ReplayWindow <= 0 {
		return 5 * time.Minute
	}
	return c.ReplayWindow
}

func (c Config) tokenTTL() time.Duration {
	if c.TokenTTL <= 0 {
		return time.Hour
	}
	return c.TokenTTL
}

type gradeEntry struct {
	Grade        float64
	Comment      string
	TeacherIDNr  string
	TimeModified int64
}

type Server struct {
	cfg    Config
	router *chi.Mux
	blobs  BlobStore
	now    func() time.Time

	mu     sync.Mutex
	grades map[string]gradeEntry
}

func NewServer(cfg Config, blobs BlobStore) *Server {
	router := chi.NewRouter()

	logger := httplog.NewLogger("demosrv", httplog.Options{
		LogLevel:         slog.LevelDebug,
		Concise:          true,
		MessageFieldName: "message",
	})

	router.Use(httplog.RequestLogger(logger))

	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	}))

	server := &Server{
		cfg:    cfg,
		router: router,
		blobs:  blobs,
		now:    time.Now,
		grades: make(map[string]gradeEntry),
	}

	server.routes()

	return server
}

func (s *Server) routes() {
	r := s.router
	r.Get("/", s.handleAction)
	r.Post("/", s.handleAction)
	r.Post("/upload", s.handleSubmit)
	r.Post("/token", s.handleToken)
}

func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) Start(address string) error {
	return http.ListenAndServe(address, s.router)
}

// SetGrade registers the grade reported for a student's submission.
func (s *Server) SetGrade(username string, grade float64, comment string, teacherIDNr string, timeModified int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.grades[username] = gradeEntry{
		Grade:        grade,
		Comment:      comment,
		TeacherIDNr:  teacherIDNr,
		TimeModified: timeModified,
	}
}

// handleAction dispatches signed view/getgrades requests. A bare GET
// with no parameters is the connectivity probe.
func (s *Server) handleAction(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet && r.URL.RawQuery == "" {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "Available")
		return
	}

	req, ok := s.verify(w, r)
	if !ok {
		return
	}

	switch req.effectiveAction {
	case "studentview":
		s.renderStudentView(w, req)
	case "teacherview":
		s.renderTeacherView(w, req)
	case "getgrades":
		s.renderGrades(w, req)
	default:
		http.Error(w, "unknown action", http.StatusBadRequest)
	}
}

func (s *Server) renderStudentView(w http.ResponseWriter, req *verifiedRequest) {
	w.Header().Set("Content-Type", "text/html")
	fmt.Fprintf(w, "<html><body><h1>%s</h1><p>Student view for %s.</p></body></html>",
		req.form.Get("aname"), req.form.Get("user"))
}

func (s *Server) renderTeacherView(w http.ResponseWriter, req *verifiedRequest) {
	target := req.form.Get("studusername")
	if target == "" {
		target = "all students"
	}
	w.Header().Set("Content-Type", "text/html")
	fmt.Fprintf(w, "<html><body><h1>%s</h1><p>Teacher view of %s.</p></body></html>",
		req.form.Get("aname"), target)
}
