package api

import (
	"fmt"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/abhisek/geoquiz/internal/engine"
	"github.com/abhisek/geoquiz/internal/session"
	"github.com/abhisek/geoquiz/internal/store"
)

// StartResponse is returned by /api/start.
type StartResponse struct {
	SessionID string `json:"session_id"`
	Status    string `json:"status"`
	Message   string `json:"message"`
}

// AnswerRequest is the body of /api/answer.
type AnswerRequest struct {
	QuestionID int `json:"question_id"`
	engine.Answer
}

// AnswerResponse is the next step after an answer.
type AnswerResponse struct {
	*engine.Step
	UpdateError string `json:"update_error,omitempty"`
}

// StateResponse describes a live session.
type StateResponse struct {
	SessionID       string               `json:"session_id"`
	Status          string               `json:"status"`
	StartedAt       time.Time            `json:"started_at"`
	LastActivity    time.Time            `json:"last_activity"`
	CurrentQuestion *engine.QuestionView `json:"current_question,omitempty"`
	engine.Statistics
}

// EndResponse is returned by /api/session/end and /api/session/abandon.
type EndResponse struct {
	*engine.Outcome
	Archived bool `json:"archived"`
}

// TimeoutResponse is returned by /api/session/timeout.
type TimeoutResponse struct {
	Expired        bool             `json:"expired"`
	IdleSeconds    float64          `json:"idle_seconds"`
	TimeoutSeconds float64          `json:"timeout_seconds"`
	Summary        *session.Summary `json:"summary,omitempty"`
}

// handleHealth reports liveness, the catalog version and the number of
// live sessions.
func (s *Server) handleHealth(c *fiber.Ctx) error {
	resp := fiber.Map{
		"status":          "healthy",
		"active_sessions": s.registry.Len(),
	}
	if s.deps.Catalog != nil {
		version, err := s.deps.Catalog.CatalogVersion(c.Context())
		if err != nil {
			s.logger.Warn("health: catalog version unavailable", zap.Error(err))
			resp["status"] = "degraded"
		} else {
			resp["catalog_version"] = version
		}
	}
	return c.JSON(resp)
}

func (s *Server) handleFeedbackQuestions(c *fiber.Ctx) error {
	return c.JSON(session.FeedbackQuestions())
}

// handleStart creates a session. The id is generated here and returned
// for use in the X-Session-ID header.
func (s *Server) handleStart(c *fiber.Ctx) error {
	sess, err := s.registry.Start(func(id string) (*session.Session, error) {
		return s.deps.Engine.StartSession(c.Context(), id, s.now())
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(StartResponse{
		SessionID: sess.ID,
		Status:    sess.Status.String(),
		Message:   "session started",
	})
}

// handleFirstQuestion issues the opening question. A question already
// waiting for an answer is returned again instead of selecting a new one.
func (s *Server) handleFirstQuestion(c *fiber.Ctx) error {
	var step *engine.Step
	err := s.withSession(c, func(sess *session.Session) error {
		if sess.Belief.Pending != nil {
			q, err := s.deps.Engine.CurrentQuestion(c.Context(), sess)
			if err != nil {
				return err
			}
			step = &engine.Step{Question: q}
			return nil
		}
		var err error
		step, err = s.deps.Engine.NextQuestion(c.Context(), sess, privileged(c), s.now())
		return err
	})
	if err != nil {
		return err
	}
	return c.JSON(step)
}

func (s *Server) handleNextQuestion(c *fiber.Ctx) error {
	var step *engine.Step
	err := s.withSession(c, func(sess *session.Session) error {
		var err error
		step, err = s.deps.Engine.NextQuestion(c.Context(), sess, privileged(c), s.now())
		return err
	})
	if err != nil {
		return err
	}
	return c.JSON(step)
}

// handleAnswer applies an answer and returns the next question. The
// answer is appended to the answer log whether or not the belief update
// succeeded.
func (s *Server) handleAnswer(c *fiber.Ctx) error {
	if err := validateBody(answerSchemaURL, c.Body()); err != nil {
		return err
	}
	var req AnswerRequest
	if err := c.BodyParser(&req); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}

	var step *engine.Step
	err := s.withSession(c, func(sess *session.Session) error {
		var err error
		step, err = s.deps.Engine.SubmitAnswer(c.Context(), sess, req.QuestionID, req.Answer, privileged(c), s.now())
		return err
	})
	if err != nil {
		return err
	}

	resp := AnswerResponse{Step: step}
	if step.Update != nil && step.Update.Err != nil {
		resp.UpdateError = step.Update.Err.Error()
	}
	s.logAnswer(c, req, step.Update)
	return c.JSON(resp)
}

func (s *Server) logAnswer(c *fiber.Ctx, req AnswerRequest, rep *engine.Report) {
	if s.deps.Answers == nil {
		return
	}
	data := store.AnswerEventData{
		SessionID:  c.Get(headerSession),
		QuestionID: req.QuestionID,
		AnswerID:   req.OptionID,
		AnswerText: req.Text,
	}
	if rep != nil {
		data.Applied = rep.Applied
		if rep.Err != nil {
			data.UpdateError = rep.Err.Error()
		}
	}
	if err := s.deps.Answers.AppendAnswer(c.Context(), data); err != nil {
		s.logger.Warn("failed to log answer",
			zap.String("session_id", data.SessionID), zap.Error(err))
	}
}

// handleTheorems ranks theorems for the session. With question_id and an
// answer, ranking is restricted to the category that answer implies.
func (s *Server) handleTheorems(c *fiber.Ctx) error {
	threshold := -1.0
	if raw := c.Query("base_threshold"); raw != "" {
		t, err := strconv.ParseFloat(raw, 64)
		if err != nil || t < 0 {
			return fmt.Errorf("%w: invalid base_threshold %q", errBadRequest, raw)
		}
		threshold = t
	}

	var qid int
	if raw := c.Query("question_id"); raw != "" {
		id, err := strconv.Atoi(raw)
		if err != nil || id <= 0 {
			return fmt.Errorf("%w: invalid question_id %q", errBadRequest, raw)
		}
		qid = id
	}
	var answer engine.Answer
	if raw := c.Query("answer_id"); raw != "" {
		id, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("%w: invalid answer_id %q", errBadRequest, raw)
		}
		answer.OptionID = id
	}
	answer.Text = c.Query("answer_text")

	var views []engine.TheoremView
	err := s.withSession(c, func(sess *session.Session) error {
		var err error
		if qid != 0 {
			views, err = s.deps.Engine.RecommendationsFor(c.Context(), sess, qid, answer, threshold)
		} else {
			views, err = s.deps.Engine.Recommendations(c.Context(), sess, threshold)
		}
		return err
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"theorems": views})
}

func (s *Server) handleState(c *fiber.Ctx) error {
	var resp StateResponse
	err := s.withSession(c, func(sess *session.Session) error {
		q, err := s.deps.Engine.CurrentQuestion(c.Context(), sess)
		if err != nil {
			return err
		}
		resp = StateResponse{
			SessionID:       sess.ID,
			Status:          sess.Status.String(),
			StartedAt:       sess.StartedAt,
			LastActivity:    sess.LastActivity,
			CurrentQuestion: q,
			Statistics:      s.deps.Engine.Statistics(sess),
		}
		return nil
	})
	if err != nil {
		return err
	}
	return c.JSON(resp)
}

// handleEnd finishes a session with feedback. The resume code keeps it
// open; any other code archives and drops it.
func (s *Server) handleEnd(c *fiber.Ctx) error {
	if err := validateBody(feedbackSchemaURL, c.Body()); err != nil {
		return err
	}
	var fb session.Feedback
	if err := c.BodyParser(&fb); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}

	var out *engine.Outcome
	err := s.withSession(c, func(sess *session.Session) error {
		var err error
		out, err = s.deps.Engine.EndSession(c.Context(), sess, fb, s.now())
		return err
	})
	if err != nil {
		return err
	}

	resp := EndResponse{Outcome: out}
	if out.Summary != nil {
		resp.Archived = s.archive(c.Context(), out.Summary)
		s.limiter.Forget(out.Summary.SessionID)
	}
	return c.JSON(resp)
}

func (s *Server) handleAbandon(c *fiber.Ctx) error {
	var sum *session.Summary
	err := s.withSession(c, func(sess *session.Session) error {
		var err error
		sum, err = s.deps.Engine.AbandonSession(c.Context(), sess, s.now())
		return err
	})
	if err != nil {
		return err
	}
	archived := s.archive(c.Context(), sum)
	s.limiter.Forget(sum.SessionID)
	return c.JSON(EndResponse{Outcome: &engine.Outcome{Summary: sum}, Archived: archived})
}

// handleTimeout reports whether the session has been idle too long. An
// expired session is abandoned and archived on the spot.
func (s *Server) handleTimeout(c *fiber.Ctx) error {
	timeout := s.registry.Timeout()
	var resp TimeoutResponse
	err := s.withSession(c, func(sess *session.Session) error {
		now := s.now()
		resp = TimeoutResponse{
			Expired:        sess.Expired(now, timeout),
			IdleSeconds:    now.Sub(sess.LastActivity).Seconds(),
			TimeoutSeconds: timeout.Seconds(),
		}
		if !resp.Expired {
			return nil
		}
		var err error
		resp.Summary, err = s.deps.Engine.AbandonSession(c.Context(), sess, now)
		return err
	})
	if err != nil {
		return err
	}
	if resp.Summary != nil {
		s.archive(c.Context(), resp.Summary)
		s.limiter.Forget(resp.Summary.SessionID)
	}
	return c.JSON(resp)
}

// handleAnswers lists the answer log, optionally for one session.
func (s *Server) handleAnswers(c *fiber.Ctx) error {
	if s.deps.Answers == nil {
		return c.JSON(fiber.Map{"answers": []store.AnswerEventRecord{}})
	}
	opts := store.QueryOpts{
		Limit: c.QueryInt("limit", 100),
		After: int64(c.QueryInt("after", 0)),
	}
	records, err := s.deps.Answers.QueryAnswers(c.Context(), c.Query("session_id"), opts)
	if err != nil {
		return err
	}
	if records == nil {
		records = []store.AnswerEventRecord{}
	}
	return c.JSON(fiber.Map{"answers": records})
}
