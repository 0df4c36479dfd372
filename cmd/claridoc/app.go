package main

import (
	"context"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"claridoc/internal/config"
	"claridoc/internal/editor"
	"claridoc/internal/gemini"
	"claridoc/internal/orchestrator"
	"claridoc/internal/realtime"
	"claridoc/internal/store"
	"claridoc/internal/usage"
)

// app holds the components shared by every command.
type app struct {
	store  *store.LocalStore
	hub    *realtime.Hub
	mirror *realtime.FileSource
	tokens *usage.Tracker // nil if the usage file could not be opened
}

// openApp opens the store and, when store.mirror_dir is set, starts the
// file mirror.
func openApp(ctx context.Context) (*app, error) {
	hub := realtime.NewHub(0)
	dbPath := config.ResolvePath(workspace, cfg.Store.DatabasePath)
	st, err := store.NewLocalStore(dbPath,
		store.WithDriver(cfg.Store.Driver),
		store.WithPublisher(hub))
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	a := &app{store: st, hub: hub}

	if cfg.Store.MirrorDir != "" {
		dir := config.ResolvePath(workspace, cfg.Store.MirrorDir)
		fs := realtime.NewFileSource(dir, st)
		if err := fs.Start(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("File mirror disabled", zap.String("dir", dir), zap.Error(err))
		} else {
			st.AddPublisher(fs)
			a.mirror = fs
		}
	}

	if t, err := usage.NewTracker(filepath.Join(workspace, config.DirName)); err != nil {
		logger.Warn("Usage tracking disabled", zap.Error(err))
	} else {
		a.tokens = t
	}

	logger.Debug("Store opened",
		zap.String("path", dbPath),
		zap.String("driver", st.Driver()),
		zap.Bool("mirror", a.mirror != nil))
	return a, nil
}

func (a *app) Close() {
	if a.mirror != nil {
		a.mirror.Stop()
	}
	if a.tokens != nil {
		if err := a.tokens.Close(); err != nil {
			logger.Warn("Failed to save usage", zap.Error(err))
		}
	}
	if err := a.store.Close(); err != nil {
		logger.Warn("Failed to close store", zap.Error(err))
	}
}

// newAssistant builds the model-backed assistant. Token usage is recorded to
// the tracker carried by ctx, if any. Tests replace it.
var newAssistant = func(ctx context.Context) (editor.Assistant, error) {
	gcfg := gemini.Config{
		APIKey:  cfg.LLM.APIKey,
		Model:   cfg.LLM.Model,
		Timeout: cfg.GetLLMTimeout(),
	}
	if t := usage.FromContext(ctx); t != nil {
		gcfg.Usage = t
	}
	client, err := gemini.NewClient(ctx, gcfg)
	if err != nil {
		return nil, err
	}
	return orchestrator.New(client, orchestrator.WithRetryPolicy(orchestrator.RetryPolicy{
		MaxAttempts: cfg.Retry.MaxAttempts,
		Backoff:     orchestrator.ExponentialBackoff(cfg.GetBackoffUnit()),
		Sleep:       orchestrator.SleepContext,
	})), nil
}

// openSession opens docID in a new session. assistant may be nil for commands
// that never call the model.
func (a *app) openSession(ctx context.Context, docID string, assistant editor.Assistant) (*editor.Session, error) {
	s := editor.New(a.store, a.hub, assistant,
		editor.WithHistoryLimit(cfg.Editor.HistoryLimit),
		editor.WithAutosaveWindow(cfg.GetAutosaveDebounce()))
	if err := s.Open(ctx, docID); err != nil {
		return nil, err
	}
	return s, nil
}

// finish flushes unsaved edits and closes the session.
func finish(ctx context.Context, s *editor.Session) error {
	defer s.Close()
	if !s.Dirty() {
		return nil
	}
	return s.Save(ctx)
}
