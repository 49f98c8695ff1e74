package engine

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/abhisek/geoquiz/internal/belief"
	"github.com/abhisek/geoquiz/internal/catalog"
)

// Report is the outcome of applying one answer.
type Report struct {
	QuestionID int      `json:"question_id"`
	Applied    []string `json:"applied,omitempty"`

	// Err is an *UpdateError when the update was discarded.
	Err error `json:"-"`
}

// Updater applies answers to a belief state through its evidence policies.
type Updater struct {
	reader   catalog.Reader
	policies []EvidencePolicy
	logger   *zap.Logger
}

// NewUpdater creates an updater with the default policies.
func NewUpdater(r catalog.Reader, cfg Config, logger *zap.Logger) *Updater {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Updater{reader: r, policies: DefaultPolicies(cfg), logger: logger}
}

// Apply runs every policy on a copy of st and commits the result only if
// all of them succeed, so a failed lookup leaves st as it was. It never
// fails the caller; a discarded update is logged and returned in
// Report.Err. The pending question is cleared either way.
func (u *Updater) Apply(ctx context.Context, st *belief.State, questionID int, answer Answer) Report {
	rep := Report{QuestionID: questionID}
	defer func() { st.Pending = nil }()

	ev := &Evidence{QuestionID: questionID, Answer: answer}
	if answer.Structured() {
		opt, err := u.resolveOption(ctx, answer.OptionID)
		if err != nil {
			rep.Err = u.discard(questionID, "", err)
			return rep
		}
		ev.Option = opt
	}

	next := st.Clone()
	for _, p := range u.policies {
		eff, err := p.Apply(ctx, u.reader, ev, next)
		if err != nil {
			rep.Err = u.discard(questionID, p.Name(), err)
			return rep
		}
		if eff.Note != "" {
			u.logger.Debug("evidence policy",
				zap.String("policy", p.Name()),
				zap.Int("question_id", questionID),
				zap.Bool("changed", eff.Changed),
				zap.String("note", eff.Note))
		}
		if eff.Changed {
			rep.Applied = append(rep.Applied, p.Name())
		}
	}

	if err := next.Validate(); err != nil {
		rep.Err = u.discard(questionID, "", err)
		return rep
	}
	*st = *next
	return rep
}

func (u *Updater) resolveOption(ctx context.Context, id int) (*catalog.AnswerOption, error) {
	opts, err := u.reader.ListAnswerOptions(ctx)
	if err != nil {
		return nil, catalogErr("list answer options", err)
	}
	for _, o := range opts {
		if o.ID == id {
			return &o, nil
		}
	}
	return nil, fmt.Errorf("%w: unknown answer id %d", ErrInvalidAnswer, id)
}

func (u *Updater) discard(questionID int, policy string, err error) error {
	uerr := &UpdateError{QuestionID: questionID, Policy: policy, Err: err}
	u.logger.Warn("weight update discarded",
		zap.Int("question_id", questionID),
		zap.String("policy", policy),
		zap.Error(err))
	return uerr
}
