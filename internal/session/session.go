// Package session drives one chat turn at a time: it builds the outgoing
// transcript, tracks optimistic and failed messages, calls the completion
// gateway and commits the result into the conversation store.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/soyeahso/geminichat/internal/assembler"
	"github.com/soyeahso/geminichat/internal/domain"
	"github.com/soyeahso/geminichat/internal/history"
	"github.com/soyeahso/geminichat/internal/logging"
)

var (
	// ErrEmptyInput is returned when the submitted text is blank.
	ErrEmptyInput = errors.New("message is empty")
	// ErrBusy is returned when a turn is already in flight.
	ErrBusy = errors.New("a response is still pending")
)

// Gateway turns a transcript into a response byte stream.
type Gateway interface {
	Complete(ctx context.Context, history []domain.Message) (io.ReadCloser, error)
}

// Notification is a transient, user-visible failure report.
type Notification struct {
	Title   string
	Message string
	Err     error
}

// Notifier receives notifications for failed turns.
type Notifier interface {
	Notify(Notification)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Notification)

func (f NotifierFunc) Notify(n Notification) { f(n) }

// State is the controller's turn state.
type State int

const (
	StateIdle State = iota
	StateSubmitting
	StateCommitted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSubmitting:
		return "submitting"
	case StateCommitted:
		return "committed"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Turn is the outcome of one Submit call.
type Turn struct {
	State          State
	ConversationID string
	User           domain.Message
	Assistant      *domain.Message
	Title          string
	Err            error
}

// Controller runs chat turns against a conversation store.
// At most one turn is in flight at a time.
type Controller struct {
	store    *history.Store
	gateway  Gateway
	notifier Notifier
	log      *logging.Logger

	mu         sync.Mutex
	state      State
	optimistic *domain.Message
}

// New creates a Controller. A nil notifier drops notifications.
func New(store *history.Store, gw Gateway, notifier Notifier, log *logging.Logger) *Controller {
	if notifier == nil {
		notifier = NotifierFunc(func(Notification) {})
	}
	return &Controller{
		store:    store,
		gateway:  gw,
		notifier: notifier,
		log:      log.Sub("session"),
	}
}

// Submit sends input as the next user message and waits for the reply.
// It returns a non-nil error whenever the turn did not commit. Blank input
// and overlapping submissions are rejected without side effects. If ctx is
// cancelled the turn is abandoned: nothing is committed and nobody is
// notified.
func (c *Controller) Submit(ctx context.Context, input string) (Turn, error) {
	user, ok := domain.NewUserMessage(input)
	if !ok {
		return Turn{State: StateIdle, Err: ErrEmptyInput}, ErrEmptyInput
	}

	c.mu.Lock()
	if c.state == StateSubmitting {
		c.mu.Unlock()
		c.log.Debug().Msg("submission rejected, turn in flight")
		return Turn{State: StateSubmitting, Err: ErrBusy}, ErrBusy
	}
	c.state = StateSubmitting
	convID := c.store.CurrentID()
	isFirst := convID == ""
	if isFirst {
		opt := user
		c.optimistic = &opt
	} else {
		c.optimistic = nil
	}
	c.mu.Unlock()

	// Store calls notify subscribers synchronously, so they run without c.mu held.
	turn := Turn{ConversationID: convID, User: user}
	transcript := []domain.Message{user}
	if !isFirst {
		if err := c.store.Append(convID, user, ""); err != nil {
			c.setIdle()
			return c.fail(turn, fmt.Errorf("appending user message: %w", err))
		}
		conv, _ := c.store.Get(convID)
		transcript = conv.Messages
	}

	c.log.Info().
		Bool("first", isFirst).
		Str("conversation", convID).
		Int("messages", len(transcript)).
		Msg("submitting turn")

	resp, err := c.exchange(ctx, transcript)
	if ctx.Err() != nil {
		c.abandon(user)
		c.log.Debug().Err(ctx.Err()).Msg("turn abandoned")
		turn.State = StateIdle
		turn.Err = ctx.Err()
		return turn, ctx.Err()
	}
	if err != nil {
		c.mu.Lock()
		if isFirst && c.isOptimisticLocked(user) {
			c.optimistic.Failed = true
		}
		c.state = StateIdle
		c.mu.Unlock()
		return c.fail(turn, err)
	}

	assistant := resp.Message
	turn.Assistant = &assistant
	turn.Title = resp.ChatTitle

	if isFirst {
		conv := c.store.CreateWithFirstExchange(user, &assistant, resp.ChatTitle)
		turn.ConversationID = conv.ID
		turn.Title = conv.Title
		c.mu.Lock()
		if c.isOptimisticLocked(user) {
			c.optimistic = nil
		}
		c.mu.Unlock()
	} else if err := c.store.Append(convID, assistant, resp.ChatTitle); err != nil {
		c.setIdle()
		return c.fail(turn, fmt.Errorf("appending assistant message: %w", err))
	}
	c.setIdle()

	if perr := c.store.PersistErr(); perr != nil {
		c.log.Warn().Err(perr).Msg("turn committed but history was not saved")
	}
	c.log.Info().Str("conversation", turn.ConversationID).Msg("turn committed")
	turn.State = StateCommitted
	return turn, nil
}

// exchange calls the gateway and assembles its stream.
func (c *Controller) exchange(ctx context.Context, transcript []domain.Message) (*domain.ChatResponse, error) {
	body, err := c.gateway.Complete(ctx, transcript)
	if err != nil {
		return nil, err
	}
	defer body.Close()
	return assembler.Assemble(ctx, body)
}

func (c *Controller) fail(turn Turn, err error) (Turn, error) {
	turn.State = StateFailed
	turn.Err = err
	c.log.Error().Err(err).Str("conversation", turn.ConversationID).Msg("turn failed")
	c.notifier.Notify(Notification{Title: "Error", Message: err.Error(), Err: err})
	return turn, err
}

func (c *Controller) abandon(user domain.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.isOptimisticLocked(user) {
		c.optimistic = nil
	}
	c.state = StateIdle
}

func (c *Controller) setIdle() {
	c.mu.Lock()
	c.state = StateIdle
	c.mu.Unlock()
}

// isOptimisticLocked reports whether user is still the optimistic message.
// NewChat or Open during a turn replaces it.
func (c *Controller) isOptimisticLocked(user domain.Message) bool {
	return c.optimistic != nil && c.optimistic.ID == user.ID
}

// Messages returns what a view should render: the current conversation's
// log, or the optimistic message while in the draft state.
func (c *Controller) Messages() []domain.Message {
	if conv, ok := c.store.Current(); ok {
		return conv.Messages
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.optimistic != nil {
		return []domain.Message{*c.optimistic}
	}
	return nil
}

// Optimistic returns the pending first message of a new conversation.
func (c *Controller) Optimistic() (domain.Message, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.optimistic == nil {
		return domain.Message{}, false
	}
	return *c.optimistic, true
}

// State reports whether a turn is in flight.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// NewChat switches to the draft state and drops any optimistic message.
func (c *Controller) NewChat() {
	c.mu.Lock()
	c.optimistic = nil
	c.mu.Unlock()
	c.store.Select("")
}

// Open makes id the current conversation.
func (c *Controller) Open(id string) error {
	if err := c.store.Select(id); err != nil {
		return err
	}
	c.mu.Lock()
	c.optimistic = nil
	c.mu.Unlock()
	return nil
}

// Delete removes a conversation. It reports whether one was removed.
func (c *Controller) Delete(id string) bool {
	return c.store.Remove(id)
}
