// Package api serves the quiz engine over HTTP.
package api

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/abhisek/geoquiz/internal/catalog"
	"github.com/abhisek/geoquiz/internal/engine"
	"github.com/abhisek/geoquiz/internal/registry"
	"github.com/abhisek/geoquiz/internal/session"
	"github.com/abhisek/geoquiz/internal/store"
)

const (
	headerSession = "X-Session-ID"
	headerRole    = "X-Role"
	roleAdmin     = "admin"

	// archiveTimeout bounds archiving a session outside a request.
	archiveTimeout = 5 * time.Second
)

// Deps are the collaborators the server drives.
type Deps struct {
	Engine *engine.Engine

	// Answers receives every submitted answer. Optional.
	Answers store.AnswerRepo

	// Sessions archives finished sessions. Optional.
	Sessions store.SessionRepo

	// Catalog reports the catalog version on /api/health. Optional.
	Catalog catalog.Versioned
}

// Server is the quiz API server.
type Server struct {
	config   Config
	deps     Deps
	registry *registry.Registry
	limiter  *Limiter
	logger   *zap.Logger
	app      *fiber.App
	now      func() time.Time
}

// NewServer creates an API server. Sessions live in memory for the life of
// the server; idle ones are abandoned and archived after the configured
// timeout.
func NewServer(config Config, deps Deps, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		config:  config,
		deps:    deps,
		limiter: NewLimiter(config.RateLimit, config.Burst),
		logger:  logger,
		now:     time.Now,
	}
	s.registry = registry.New(registry.Options{
		Timeout:         config.SessionTimeout,
		CleanupInterval: config.SweepInterval,
		OnExpire:        s.expire,
		Logger:          logger,
	})

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler:          s.errorHandler,
	})
	s.app = app

	app.Get("/api/health", s.handleHealth)
	app.Get("/api/feedback/questions", s.handleFeedbackQuestions)
	app.Get("/api/start", s.handleStart)
	app.Post("/api/start", s.handleStart)

	app.Get("/api/question/first", s.requireSession, s.rateLimit, s.handleFirstQuestion)
	app.Get("/api/question/next", s.requireSession, s.rateLimit, s.handleNextQuestion)
	app.Post("/api/answer", s.requireSession, s.rateLimit, s.handleAnswer)
	app.Get("/api/theorems", s.requireSession, s.rateLimit, s.handleTheorems)
	app.Get("/api/session/state", s.requireSession, s.rateLimit, s.handleState)
	app.Post("/api/session/end", s.requireSession, s.rateLimit, s.handleEnd)
	app.Post("/api/session/abandon", s.requireSession, s.rateLimit, s.handleAbandon)
	app.Get("/api/session/timeout", s.requireSession, s.rateLimit, s.handleTimeout)

	app.Get("/api/answers", s.requireAdmin, s.handleAnswers)

	return s
}

// Run starts the API server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting API server",
		zap.String("listen", s.config.ListenAddr),
		zap.Duration("session_timeout", s.config.SessionTimeout),
	)
	return s.app.Listen(s.config.ListenAddr)
}

// Shutdown stops accepting requests and abandons every open session so it
// is archived as partial.
func (s *Server) Shutdown() error {
	err := s.app.Shutdown()
	s.registry.Flush()
	return err
}

// ActiveSessions returns the number of sessions held in memory.
func (s *Server) ActiveSessions() int {
	return s.registry.Len()
}

// requireSession rejects requests without a session header.
func (s *Server) requireSession(c *fiber.Ctx) error {
	if c.Get(headerSession) == "" {
		return errNoSession
	}
	return c.Next()
}

// rateLimit throttles requests per session. Only live sessions get a
// limiter; one left behind by a session that ended mid-request is dropped.
func (s *Server) rateLimit(c *fiber.Ctx) error {
	id := c.Get(headerSession)
	if !s.registry.Has(id) {
		return fmt.Errorf("%w: %s", registry.ErrNotFound, id)
	}
	if !s.limiter.Allow(id) {
		return errRateLimited
	}
	err := c.Next()
	if !s.registry.Has(id) {
		s.limiter.Forget(id)
	}
	return err
}

func (s *Server) requireAdmin(c *fiber.Ctx) error {
	if !privileged(c) {
		return errForbidden
	}
	return c.Next()
}

// privileged reports whether the caller was authenticated as an admin.
func privileged(c *fiber.Ctx) bool {
	return c.Get(headerRole) == roleAdmin
}

// withSession runs fn on the request's session under its lock.
func (s *Server) withSession(c *fiber.Ctx, fn func(*session.Session) error) error {
	return s.registry.With(c.Get(headerSession), fn)
}

// expire abandons and archives a session evicted for inactivity.
func (s *Server) expire(sess *session.Session) {
	defer s.limiter.Forget(sess.ID)
	if !sess.Open() {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), archiveTimeout)
	defer cancel()

	sum, err := s.deps.Engine.AbandonSession(ctx, sess, s.now())
	if err != nil {
		s.logger.Warn("failed to abandon expired session",
			zap.String("session_id", sess.ID), zap.Error(err))
		return
	}
	s.archive(ctx, sum)
}

// archive saves a summary. Failures are logged and otherwise ignored.
func (s *Server) archive(ctx context.Context, sum *session.Summary) bool {
	if s.deps.Sessions == nil {
		return false
	}
	if err := s.deps.Sessions.Save(ctx, sum); err != nil {
		s.logger.Warn("failed to archive session",
			zap.String("session_id", sum.SessionID), zap.Error(err))
		return false
	}
	return true
}
