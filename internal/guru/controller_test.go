package guru

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/crowdguru/backend/internal/assignment"
	"github.com/crowdguru/backend/internal/questions"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// captureNotifier records delivered notices in order.
type captureNotifier struct {
	mu      sync.Mutex
	notices []notice
}

type notice struct {
	user string
	text string
}

func (n *captureNotifier) Deliver(_ context.Context, user, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = append(n.notices, notice{user: user, text: text})
	return nil
}

func (n *captureNotifier) sentTo(user string) []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []string
	for _, m := range n.notices {
		if m.user == user {
			out = append(out, m.text)
		}
	}
	return out
}

func newTestController(t *testing.T) (*Controller, *questions.Memory, *captureNotifier, *fakeClock) {
	t.Helper()
	store := questions.NewMemory()
	clock := newFakeClock()
	notify := &captureNotifier{}
	engine := assignment.NewEngine(assignment.Config{Store: store, Now: clock.Now})
	ctrl := NewController(engine, store, notify, clock.Now, nil)
	return ctrl, store, notify, clock
}

func TestParseText(t *testing.T) {
	tests := []struct {
		name   string
		sender string
		text   string
		want   Event
	}{
		{"command with arg", "x@example.com/laptop", "/tellme the meaning of life",
			Event{Sender: "x@example.com", Command: "tellme", Arg: "the meaning of life"}},
		{"bare command", "x@example.com", "/askme",
			Event{Sender: "x@example.com", Command: "askme"}},
		{"uppercase command", "x@example.com", "/TellMe why",
			Event{Sender: "x@example.com", Command: "tellme", Arg: "why"}},
		{"plain text", "x@example.com/phone", "because it is",
			Event{Sender: "x@example.com", Arg: "because it is"}},
		{"whitespace", "x@example.com", "   ",
			Event{Sender: "x@example.com"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, ParseText(tt.sender, tt.text))
		})
	}
}

func TestAskCreatesQuestionAndPonders(t *testing.T) {
	ctrl, store, _, _ := newTestController(t)

	reply, err := ctrl.HandleText(context.Background(), "x@example.com", "/tellme the meaning of life")
	require.NoError(t, err)
	require.Equal(t, MsgPonder, reply)

	q, err := store.OpenAskedBy(context.Background(), "x@example.com")
	require.NoError(t, err)
	require.NotNil(t, q)
	require.Equal(t, "the meaning of life", q.Body)
	require.Empty(t, q.Assignees)
}

func TestAskSecondQuestionGetsWait(t *testing.T) {
	ctrl, _, _, _ := newTestController(t)
	ctx := context.Background()

	_, err := ctrl.HandleText(ctx, "x@example.com", "/tellme first")
	require.NoError(t, err)

	reply, err := ctrl.HandleText(ctx, "x@example.com", "/tellme second")
	require.NoError(t, err)
	require.Equal(t, MsgWait, reply)

	// Still exactly one open question for x.
	reply, err = ctrl.HandleText(ctx, "x@example.com", "/tellme third")
	require.NoError(t, err)
	require.Equal(t, MsgWait, reply)
}

func TestAskHandsBackAnotherQuestion(t *testing.T) {
	ctrl, _, _, clock := newTestController(t)
	ctx := context.Background()

	_, err := ctrl.HandleText(ctx, "x@example.com", "/tellme why is the sky blue")
	require.NoError(t, err)
	clock.Advance(time.Second)

	reply, err := ctrl.HandleText(ctx, "y@example.com", "/tellme what is north of the pole")
	require.NoError(t, err)
	require.Equal(t, fmt.Sprintf(MsgTellMe, "why is the sky blue"), reply)
}

func TestAskEmptyTextGetsHelp(t *testing.T) {
	ctrl, _, _, _ := newTestController(t)

	reply, err := ctrl.HandleText(context.Background(), "x@example.com", "/tellme")
	require.NoError(t, err)
	require.Equal(t, MsgHelp, reply)
}

func TestUnknownCommandGetsHelp(t *testing.T) {
	ctrl, _, _, _ := newTestController(t)

	reply, err := ctrl.HandleText(context.Background(), "x@example.com", "/dance")
	require.NoError(t, err)
	require.Equal(t, MsgHelp, reply)
}

func TestAssignRequestEmptyQueue(t *testing.T) {
	ctrl, _, _, _ := newTestController(t)

	reply, err := ctrl.HandleText(context.Background(), "z@example.com", "/askme")
	require.NoError(t, err)
	require.Equal(t, MsgEmptyQueue, reply)
}

func TestAssignRequestPivotsClaim(t *testing.T) {
	ctrl, store, _, clock := newTestController(t)
	ctx := context.Background()

	_, err := ctrl.HandleText(ctx, "x@example.com", "/tellme first question")
	require.NoError(t, err)
	clock.Advance(time.Second)
	_, err = ctrl.HandleText(ctx, "y@example.com", "/tellme second question")
	require.NoError(t, err)
	clock.Advance(time.Second)

	reply, err := ctrl.HandleText(ctx, "z@example.com", "/askme")
	require.NoError(t, err)
	require.Equal(t, fmt.Sprintf(MsgTellMe, "first question"), reply)

	// Pivot: z gets the second question and drops the claim on the first.
	reply, err = ctrl.HandleText(ctx, "z@example.com", "/askme")
	require.NoError(t, err)
	require.Equal(t, fmt.Sprintf(MsgTellMe, "second question"), reply)

	first, err := store.OpenAskedBy(ctx, "x@example.com")
	require.NoError(t, err)
	require.Empty(t, first.Assignees)

	second, err := store.OpenAskedBy(ctx, "y@example.com")
	require.NoError(t, err)
	require.Equal(t, []string{"z@example.com"}, second.Assignees)
}

func TestAnswerFlowWithExpiryScenario(t *testing.T) {
	ctrl, store, notify, clock := newTestController(t)
	ctx := context.Background()

	// t=0: X asks Q1.
	_, err := ctrl.HandleText(ctx, "x@example.com", "/tellme Q1")
	require.NoError(t, err)

	// t=1: Y receives Q1.
	clock.Advance(time.Second)
	reply, err := ctrl.HandleText(ctx, "y@example.com", "/askme")
	require.NoError(t, err)
	require.Equal(t, fmt.Sprintf(MsgTellMe, "Q1"), reply)

	// t=2: Z gets nothing, Q1 is validly claimed.
	clock.Advance(time.Second)
	reply, err = ctrl.HandleText(ctx, "z@example.com", "/askme")
	require.NoError(t, err)
	require.Equal(t, MsgEmptyQueue, reply)

	// t=125: Y's claim expired, Z receives Q1; Y's stale entry remains.
	clock.Advance(123 * time.Second)
	reply, err = ctrl.HandleText(ctx, "z@example.com", "/askme")
	require.NoError(t, err)
	require.Equal(t, fmt.Sprintf(MsgTellMe, "Q1"), reply)

	q, err := store.OpenAskedBy(ctx, "x@example.com")
	require.NoError(t, err)
	require.Equal(t, []string{"y@example.com", "z@example.com"}, q.Assignees)

	// Y answers anyway: X gets intro + answer, Z hears someone was faster.
	reply, err = ctrl.HandleText(ctx, "y@example.com", "A1")
	require.NoError(t, err)
	require.Equal(t, MsgThanks, reply)

	require.Equal(t, []string{
		fmt.Sprintf(MsgAnswerIntro, "Q1"),
		fmt.Sprintf(MsgAnswer, "A1"),
	}, notify.sentTo("x@example.com"))
	require.Equal(t, []string{MsgSomeoneAnswered}, notify.sentTo("z@example.com"))

	answered, err := store.ListAnswered(ctx, 10)
	require.NoError(t, err)
	require.Len(t, answered, 1)
	require.Equal(t, "A1", *answered[0].Answer)
	require.Equal(t, "y@example.com", *answered[0].Answerer)
	require.Empty(t, answered[0].Assignees)
}

func TestAnswerWhileStillAskingGetsTellMeThanks(t *testing.T) {
	ctrl, _, _, clock := newTestController(t)
	ctx := context.Background()

	_, err := ctrl.HandleText(ctx, "x@example.com", "/tellme Q1")
	require.NoError(t, err)
	clock.Advance(time.Second)

	// Y asks their own question and gets Q1 in exchange.
	reply, err := ctrl.HandleText(ctx, "y@example.com", "/tellme Q2")
	require.NoError(t, err)
	require.Equal(t, fmt.Sprintf(MsgTellMe, "Q1"), reply)

	reply, err = ctrl.HandleText(ctx, "y@example.com", "A1")
	require.NoError(t, err)
	require.Equal(t, MsgTellMeThanks, reply)
}

func TestPlainTextWithoutClaimGetsHelp(t *testing.T) {
	ctrl, _, _, _ := newTestController(t)

	reply, err := ctrl.HandleText(context.Background(), "x@example.com", "just chatting")
	require.NoError(t, err)
	require.Equal(t, MsgHelp, reply)
}

func TestPresenceSuspendsOpenQuestion(t *testing.T) {
	ctrl, store, _, _ := newTestController(t)
	ctx := context.Background()

	_, err := ctrl.HandleText(ctx, "x@example.com", "/tellme Q1")
	require.NoError(t, err)

	require.NoError(t, ctrl.OnUnavailable(ctx, "x@example.com/phone"))
	q, err := store.OpenAskedBy(ctx, "x@example.com")
	require.NoError(t, err)
	require.True(t, q.Suspended)

	require.NoError(t, ctrl.OnAvailable(ctx, "x@example.com/phone"))
	q, err = store.OpenAskedBy(ctx, "x@example.com")
	require.NoError(t, err)
	require.False(t, q.Suspended)
}
