package core

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// ServiceConfig holds the collaborators shared by every workspace.
type ServiceConfig struct {
	Policy   CancelPolicy
	Auditor  *Auditor
	Recorder Recorder
}

// Service owns the workspaces of every logged-in console user.
type Service struct {
	opts TableOptions

	mu         sync.RWMutex
	workspaces map[string]*Workspace
}

// NewService creates a service with no workspaces.
func NewService(cfg ServiceConfig) *Service {
	if cfg.Recorder == nil {
		cfg.Recorder = NopRecorder{}
	}
	return &Service{
		opts: TableOptions{
			Policy:   cfg.Policy,
			Auditor:  cfg.Auditor,
			Recorder: cfg.Recorder,
		},
		workspaces: make(map[string]*Workspace),
	}
}

// Auditor returns the audit trail.
func (s *Service) Auditor() *Auditor { return s.opts.Auditor }

// Workspace returns the workspace stored under key, creating it on first
// use. The backend and user are refreshed on every call so a re-login
// carries its new token.
func (s *Service) Workspace(key string, user User, be Backend) *Workspace {
	s.mu.Lock()
	w, ok := s.workspaces[key]
	if !ok {
		w = &Workspace{
			key:           key,
			be:            newBackendRef(be),
			opts:          s.opts,
			tables:        make(map[string]*TableView),
			registrations: make(map[string]*RegistrationSession),
		}
		s.workspaces[key] = w
		s.opts.Recorder.WorkspacesActive(len(s.workspaces))
	}
	s.mu.Unlock()

	w.bind(user, be)
	return w
}

// Lookup returns an existing workspace.
func (s *Service) Lookup(key string) (*Workspace, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.workspaces[key]
	return w, ok
}

// Drop discards a workspace and everything in it.
func (s *Service) Drop(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.workspaces[key]; ok {
		delete(s.workspaces, key)
		s.opts.Recorder.WorkspacesActive(len(s.workspaces))
	}
}

// Len returns the number of live workspaces.
func (s *Service) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.workspaces)
}

// SweepIdle drops workspaces unused for longer than ttl and returns how
// many were dropped.
func (s *Service) SweepIdle(now time.Time, ttl time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	dropped := 0
	for key, w := range s.workspaces {
		if now.Sub(w.LastSeen()) > ttl {
			delete(s.workspaces, key)
			dropped++
		}
	}
	if dropped > 0 {
		s.opts.Recorder.WorkspacesActive(len(s.workspaces))
	}
	return dropped
}

// backendRef is the backend client shared by a workspace and its views.
// Views load it per call; bind swaps it without taking any view lock.
type backendRef struct {
	p atomic.Pointer[boundBackend]
}

type boundBackend struct{ Backend }

func newBackendRef(be Backend) *backendRef {
	r := &backendRef{}
	r.Store(be)
	return r
}

func (r *backendRef) Store(be Backend) { r.p.Store(&boundBackend{be}) }

func (r *backendRef) Load() Backend {
	if b := r.p.Load(); b != nil {
		return b.Backend
	}
	return nil
}

// Workspace is one user's set of table views and registration forms.
// w.mu guards the maps and is never held while a view lock is taken.
type Workspace struct {
	mu sync.Mutex

	key  string
	user User
	be   *backendRef
	opts TableOptions

	tables        map[string]*TableView
	registrations map[string]*RegistrationSession
	lastSeen      time.Time
}

func (w *Workspace) bind(user User, be Backend) {
	w.mu.Lock()
	w.user = user
	w.lastSeen = time.Now()
	w.mu.Unlock()
	w.be.Store(be)
}

// Key returns the workspace key (the console session token).
func (w *Workspace) Key() string { return w.key }

// User returns the workspace owner.
func (w *Workspace) User() User {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.user
}

// Backend returns the backend client bound to the workspace.
func (w *Workspace) Backend() Backend {
	return w.be.Load()
}

// LastSeen reports when the workspace was last used.
func (w *Workspace) LastSeen() time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastSeen
}

func viewKey(table, status string) string {
	return table + "|" + status
}

// Table returns the view of a table, loading it on first use.
func (w *Workspace) Table(ctx context.Context, key, status string) (*TableView, error) {
	def, err := Lookup(key)
	if err != nil {
		return nil, err
	}
	if status == "" {
		status = def.DefaultStatus
	}

	w.mu.Lock()
	w.lastSeen = time.Now()
	v, ok := w.tables[viewKey(key, status)]
	if !ok {
		v = newTableView(def, w.be, status, w.opts)
		w.tables[viewKey(key, status)] = v
	}
	w.mu.Unlock()

	if v.State().LoadedAt.IsZero() {
		if err := v.Load(ctx); err != nil {
			return nil, err
		}
	}
	return v, nil
}

// OpenRegistration starts a registration form for a table.
func (w *Workspace) OpenRegistration(ctx context.Context, key string) (*RegistrationSession, error) {
	def, err := Lookup(key)
	if err != nil {
		return nil, err
	}
	sess, err := newRegistrationSession(def, w.be, w.opts)
	if err != nil {
		return nil, err
	}
	if err := sess.Open(ctx); err != nil {
		return nil, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.lastSeen = time.Now()
	w.registrations[sess.ID()] = sess
	return sess, nil
}

// Registration returns an open registration form.
func (w *Workspace) Registration(id string) (*RegistrationSession, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.lastSeen = time.Now()
	sess, ok := w.registrations[id]
	if !ok {
		return nil, fmt.Errorf("%w: registration %s", ErrSessionClosed, id)
	}
	return sess, nil
}

// CloseRegistration discards a registration form.
func (w *Workspace) CloseRegistration(id string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.registrations[id]
	delete(w.registrations, id)
	return ok
}

// History loads the history view of an asset (or TOTAL).
func (w *Workspace) History(ctx context.Context, assetID string) (*HistoryView, error) {
	w.mu.Lock()
	w.lastSeen = time.Now()
	w.mu.Unlock()
	return Run(ctx, w.opts.Policy, func(ctx context.Context) (*HistoryView, error) {
		return LoadHistory(ctx, w.be.Load(), assetID)
	})
}
