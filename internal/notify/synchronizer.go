// Package notify keeps the signed-in user's notifications in step with the
// remote feed. The Synchronizer is a Bubble Tea reducer: remote calls run as
// commands and their results come back through Update, so every change to
// the store, the unread count and the toast happens on the program's
// update loop.
package notify

import (
	"context"
	gosync "sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/nhle/campusnotify/internal/feed"
	"github.com/nhle/campusnotify/internal/model"
	"github.com/nhle/campusnotify/internal/session"
	appsync "github.com/nhle/campusnotify/internal/sync"
)

// State is the lifecycle of a Synchronizer.
type State int

const (
	StateUninitialized State = iota
	StateSubscribed
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateSubscribed:
		return "subscribed"
	case StateTerminated:
		return "terminated"
	default:
		return "uninitialized"
	}
}

// markAllLimit caps concurrent per-record updates in MarkAllAsRead.
const markAllLimit = 8

type loadedMsg struct {
	items []model.Notification
	err   error
}

type subscribedMsg struct {
	sub feed.Subscription
	err error
}

type markedReadMsg struct {
	id  string
	err error
}

type markAllDoneMsg struct {
	ids    []string
	failed map[string]error
}

type deletedMsg struct {
	id  string
	err error
}

// SentMsg reports the outcome of Send.
type SentMsg struct {
	Notification model.Notification
	Recipient    string
	Err          error
}

// Options configures a Synchronizer.
type Options struct {
	ToastDuration time.Duration
	Logger        zerolog.Logger
}

// Synchronizer reconciles remote feed events into the local Store and
// drives the toast slot. It is a value; Update returns the next one.
type Synchronizer struct {
	backend  feed.Backend
	session  session.Session
	listener *appsync.Listener
	logger   zerolog.Logger

	state    State
	store    Store
	toast    Toast
	revision uint64
}

// New creates a Synchronizer for sess. A signed-out session produces a
// Synchronizer whose operations do nothing.
func New(backend feed.Backend, sess session.Session, opts Options) Synchronizer {
	return Synchronizer{
		backend:  backend,
		session:  sess,
		listener: appsync.NewListener(),
		logger:   opts.Logger.With().Str("component", "notify").Logger(),
		toast:    NewToast(opts.ToastDuration),
	}
}

// State returns the lifecycle state.
func (s Synchronizer) State() State { return s.state }

// Session returns the session the Synchronizer was built for.
func (s Synchronizer) Session() session.Session { return s.session }

// Items returns the stored notifications in display order.
func (s Synchronizer) Items() []model.Notification { return s.store.Items() }

// Store returns the current store.
func (s Synchronizer) Store() Store { return s.store }

// UnreadCount returns the number of unread notifications.
func (s Synchronizer) UnreadCount() int { return s.store.UnreadCount() }

// Toast returns the toast slot.
func (s Synchronizer) Toast() Toast { return s.toast }

// Revision increases whenever the store changes.
func (s Synchronizer) Revision() uint64 { return s.revision }

// ListenerStatus returns the status of the live subscription.
func (s Synchronizer) ListenerStatus() appsync.ListenerStatus { return s.listener.Status() }

func (s Synchronizer) active() bool {
	return s.session.SignedIn() && s.state != StateTerminated
}

func (s Synchronizer) setStore(next Store) Synchronizer {
	s.store = next
	s.revision++
	return s
}

// Start issues the initial bulk load. The subscription is opened once the
// load result arrives.
func (s Synchronizer) Start() tea.Cmd {
	if !s.active() || s.state != StateUninitialized {
		return nil
	}
	return s.load()
}

// Reload fetches the full snapshot again and replaces the store with it.
func (s Synchronizer) Reload() tea.Cmd {
	if !s.active() {
		return nil
	}
	return s.load()
}

func (s Synchronizer) load() tea.Cmd {
	backend, userID := s.backend, s.session.UserID
	return func() tea.Msg {
		items, err := backend.List(context.Background(), userID)
		return loadedMsg{items: items, err: err}
	}
}

func (s Synchronizer) subscribe() tea.Cmd {
	backend, userID := s.backend, s.session.UserID
	return func() tea.Msg {
		sub, err := backend.Subscribe(context.Background(), userID)
		return subscribedMsg{sub: sub, err: err}
	}
}

// MarkAsRead marks one notification read remotely. The local record only
// changes once the backend confirms.
func (s Synchronizer) MarkAsRead(id string) tea.Cmd {
	if !s.active() || id == "" {
		return nil
	}
	backend := s.backend
	return func() tea.Msg {
		return markedReadMsg{id: id, err: backend.MarkRead(context.Background(), id)}
	}
}

// MarkAllAsRead flips every unread record locally and issues one remote
// update per record. If any update fails, a full reload follows so the
// store converges on the remote state.
func (s Synchronizer) MarkAllAsRead() (Synchronizer, tea.Cmd) {
	if !s.active() {
		return s, nil
	}
	next, ids := s.store.MarkAllRead()
	if len(ids) == 0 {
		return s, nil
	}
	s = s.setStore(next)

	backend := s.backend
	return s, func() tea.Msg {
		var (
			mu     gosync.Mutex
			failed = make(map[string]error)
			g      errgroup.Group
		)
		g.SetLimit(markAllLimit)
		for _, id := range ids {
			g.Go(func() error {
				if err := backend.MarkRead(context.Background(), id); err != nil {
					mu.Lock()
					failed[id] = err
					mu.Unlock()
				}
				return nil
			})
		}
		g.Wait()
		return markAllDoneMsg{ids: ids, failed: failed}
	}
}

// Delete removes one notification remotely, then locally on success.
func (s Synchronizer) Delete(id string) tea.Cmd {
	if !s.active() || id == "" {
		return nil
	}
	backend := s.backend
	return func() tea.Msg {
		return deletedMsg{id: id, err: backend.Delete(context.Background(), id)}
	}
}

// Send creates a notification for recipient, or for the signed-in user
// when recipient is empty. The new record reaches the store through the
// recipient's feed, not through the result message.
func (s Synchronizer) Send(recipient string, n model.Notification) tea.Cmd {
	if !s.active() {
		return nil
	}
	if recipient == "" {
		recipient = s.session.UserID
	}
	if n.SenderName == nil && s.session.Email != "" {
		sender := s.session.Email
		n.SenderName = &sender
	}
	backend := s.backend
	return func() tea.Msg {
		created, err := backend.Create(context.Background(), recipient, n)
		return SentMsg{Notification: created, Recipient: recipient, Err: err}
	}
}

// DismissToast clears the toast slot immediately.
func (s Synchronizer) DismissToast() Synchronizer {
	s.toast = s.toast.Dismiss()
	return s
}

// Stop releases the subscription and clears the store. A stopped
// Synchronizer ignores every later message.
func (s Synchronizer) Stop() Synchronizer {
	if s.state == StateTerminated {
		return s
	}
	s.listener.Stop()
	s = s.setStore(Store{})
	s.toast = s.toast.Dismiss()
	s.state = StateTerminated
	return s
}

// Apply folds one feed event into the store. An Added record with a new
// id is prepended and shown as a toast; a known id is ignored. Modified
// replaces a known record in place. Removed drops it.
func (s Synchronizer) Apply(ev feed.Event) (Synchronizer, tea.Cmd) {
	switch ev.Kind {
	case feed.EventAdded:
		next, changed := s.store.Prepend(ev.Notification)
		if !changed {
			return s, nil
		}
		s = s.setStore(next)
		var cmd tea.Cmd
		s.toast, cmd = s.toast.Show(ev.Notification)
		return s, cmd

	case feed.EventModified:
		if next, changed := s.store.Update(ev.Notification); changed {
			s = s.setStore(next)
		}
		return s, nil

	case feed.EventRemoved:
		if next, changed := s.store.Remove(ev.ID); changed {
			s = s.setStore(next)
		}
		return s, nil
	}
	return s, nil
}

// Update handles feed events and remote call results.
func (s Synchronizer) Update(msg tea.Msg) (Synchronizer, tea.Cmd) {
	if s.state == StateTerminated {
		if m, ok := msg.(subscribedMsg); ok && m.sub != nil {
			m.sub.Close()
		}
		return s, nil
	}

	switch msg := msg.(type) {
	case loadedMsg:
		if msg.err != nil {
			s.logger.Warn().Err(msg.err).Str("op", "load").Str("user", s.session.UserID).Msg("loading notifications failed")
		} else {
			s = s.setStore(s.store.Replace(msg.items))
		}
		if s.state == StateUninitialized || !s.listener.Live() {
			return s, s.subscribe()
		}
		return s, nil

	case subscribedMsg:
		if msg.err != nil {
			s.logger.Warn().Err(msg.err).Str("op", "subscribe").Str("user", s.session.UserID).Msg("opening notification feed failed")
			return s, nil
		}
		s.state = StateSubscribed
		return s, s.listener.Attach(msg.sub)

	case appsync.EventMsg:
		if msg.Gen != s.listener.Gen() {
			return s, nil
		}
		var cmd tea.Cmd
		s, cmd = s.Apply(msg.Event)
		return s, tea.Batch(cmd, s.listener.WaitForNext())

	case appsync.ClosedMsg:
		if msg.Gen == s.listener.Gen() {
			s.logger.Warn().Str("op", "listen").Str("user", s.session.UserID).Msg("notification feed closed")
		}
		return s, nil

	case markedReadMsg:
		if msg.err != nil {
			s.logger.Warn().Err(msg.err).Str("op", "mark_read").Str("id", msg.id).Msg("marking notification read failed")
			return s, nil
		}
		if next, changed := s.store.SetRead(msg.id); changed {
			s = s.setStore(next)
		}
		return s, nil

	case markAllDoneMsg:
		if len(msg.failed) == 0 {
			return s, nil
		}
		for id, err := range msg.failed {
			s.logger.Warn().Err(err).Str("op", "mark_all_read").Str("id", id).Msg("marking notification read failed")
		}
		return s, s.load()

	case deletedMsg:
		if msg.err != nil {
			s.logger.Warn().Err(msg.err).Str("op", "delete").Str("id", msg.id).Msg("deleting notification failed")
			return s, nil
		}
		if next, changed := s.store.Remove(msg.id); changed {
			s = s.setStore(next)
		}
		return s, nil

	case SentMsg:
		if msg.Err != nil {
			s.logger.Warn().Err(msg.Err).Str("op", "send").Str("recipient", msg.Recipient).Msg("sending notification failed")
		}
		return s, nil

	case toastExpiredMsg:
		s.toast, _ = s.toast.expire(msg)
		return s, nil
	}

	return s, nil
}
