// Package guru maps inbound chat events to assignment engine operations and
// composes the replies and fan-out notices that flow back out.
package guru

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/crowdguru/backend/internal/assignment"
	"github.com/crowdguru/backend/internal/models"
)

// Store is the slice of the question store the controller needs beyond what
// the engine already exposes.
type Store interface {
	Create(ctx context.Context, q *models.Question) error
	SetSuspended(ctx context.Context, asker string, suspended bool) error
}

// Notifier delivers a notice to a user who is not the current sender.
type Notifier interface {
	Deliver(ctx context.Context, user, text string) error
}

// Controller orchestrates the ask/answer/notify sequence.
type Controller struct {
	engine *assignment.Engine
	store  Store
	notify Notifier
	now    func() time.Time
	logger *zap.Logger
}

// NewController creates a conversation controller.
func NewController(engine *assignment.Engine, store Store, notify Notifier, now func() time.Time, logger *zap.Logger) *Controller {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{engine: engine, store: store, notify: notify, now: now, logger: logger}
}

// HandleText parses a raw chat line and dispatches it.
func (c *Controller) HandleText(ctx context.Context, sender, text string) (string, error) {
	return c.Handle(ctx, ParseText(sender, text))
}

// Handle dispatches one inbound event and returns the reply for the sender.
func (c *Controller) Handle(ctx context.Context, ev Event) (string, error) {
	switch ev.Command {
	case CommandAsk:
		return c.onAsk(ctx, ev.Sender, ev.Arg)
	case CommandAssign:
		return c.onAssignRequest(ctx, ev.Sender)
	case "":
		return c.onAnswer(ctx, ev.Sender, ev.Arg)
	default:
		return MsgHelp, nil
	}
}

// onAsk handles /tellme: record the sender's question and, when they are not
// already answering one, try to hand them someone else's in return.
func (c *Controller) onAsk(ctx context.Context, sender, text string) (string, error) {
	if text == "" {
		return MsgHelp, nil
	}

	asked, err := c.engine.OpenAskedBy(ctx, sender)
	if err != nil {
		return "", err
	}
	if asked != nil {
		// Already has an outstanding question.
		return MsgWait, nil
	}

	q := models.NewQuestion(text, sender, c.now())
	if err := c.store.Create(ctx, q); err != nil {
		return "", fmt.Errorf("create question: %w", err)
	}
	c.logger.Info("question asked", zap.String("question_id", q.ID.String()), zap.String("asker", sender))

	answering, err := c.engine.OpenAssignedTo(ctx, sender)
	if err != nil {
		return "", err
	}
	if answering == nil {
		got, err := c.engine.Assign(ctx, sender)
		if err != nil {
			return "", err
		}
		if got != nil {
			return fmt.Sprintf(MsgTellMe, got.Body), nil
		}
	}
	return MsgPonder, nil
}

// onAssignRequest handles /askme: pick a new question for the sender and only
// then release whatever they were answering, so the old claim still blocks
// the selection from handing the same question back.
func (c *Controller) onAssignRequest(ctx context.Context, sender string) (string, error) {
	current, err := c.engine.OpenAssignedTo(ctx, sender)
	if err != nil {
		return "", err
	}

	got, err := c.engine.Assign(ctx, sender)
	if err != nil {
		return "", err
	}

	reply := MsgEmptyQueue
	if got != nil {
		reply = fmt.Sprintf(MsgTellMe, got.Body)
	}

	if current != nil && (got == nil || current.ID != got.ID) {
		if err := c.engine.Release(ctx, current.ID, sender); err != nil {
			return "", err
		}
	}
	return reply, nil
}

// onAnswer handles plain text: if the sender holds a live claim, record the
// answer, tell the asker, and let superseded claimants off the hook.
func (c *Controller) onAnswer(ctx context.Context, sender, text string) (string, error) {
	if text == "" {
		return MsgHelp, nil
	}

	answering, err := c.engine.OpenAssignedTo(ctx, sender)
	if err != nil {
		return "", err
	}
	if answering == nil {
		return MsgHelp, nil
	}

	notice, superseded, err := c.engine.Answer(ctx, answering.ID, sender, text)
	if err != nil {
		return "", err
	}

	if err := c.notify.Deliver(ctx, notice.Asker, fmt.Sprintf(MsgAnswerIntro, notice.Question)); err != nil {
		c.logger.Warn("asker notice failed", zap.String("user", notice.Asker), zap.Error(err))
	}
	if err := c.notify.Deliver(ctx, notice.Asker, fmt.Sprintf(MsgAnswer, notice.Answer)); err != nil {
		c.logger.Warn("asker notice failed", zap.String("user", notice.Asker), zap.Error(err))
	}
	for _, user := range superseded {
		if err := c.notify.Deliver(ctx, user, MsgSomeoneAnswered); err != nil {
			c.logger.Warn("superseded notice failed", zap.String("user", user), zap.Error(err))
		}
	}

	asked, err := c.engine.OpenAskedBy(ctx, sender)
	if err != nil {
		return "", err
	}
	if asked != nil {
		return MsgTellMeThanks, nil
	}
	return MsgThanks, nil
}

// OnUnavailable suspends the sender's open question while they are offline.
func (c *Controller) OnUnavailable(ctx context.Context, sender string) error {
	return c.store.SetSuspended(ctx, models.Bare(sender), true)
}

// OnAvailable resumes the sender's open question when they come back.
func (c *Controller) OnAvailable(ctx context.Context, sender string) error {
	return c.store.SetSuspended(ctx, models.Bare(sender), false)
}
