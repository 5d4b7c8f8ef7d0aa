package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/Cyclone1070/aicoder/internal/config"
	"github.com/Cyclone1070/aicoder/internal/contextmgr"
	"github.com/Cyclone1070/aicoder/internal/logging"
	"github.com/Cyclone1070/aicoder/internal/provider"
	"github.com/Cyclone1070/aicoder/internal/provider/models"
	"github.com/Cyclone1070/aicoder/internal/render"
	"github.com/Cyclone1070/aicoder/internal/retrieval"
	"github.com/Cyclone1070/aicoder/internal/session"
	"github.com/Cyclone1070/aicoder/internal/tool/service/path"
	"github.com/Cyclone1070/aicoder/internal/tool/toolset"
	"github.com/Cyclone1070/aicoder/internal/workflow"
	"github.com/Cyclone1070/aicoder/internal/workflow/loop"
	"github.com/Cyclone1070/aicoder/internal/workflow/toolmanager"
	"go.uber.org/zap"
	"golang.org/x/term"
)

// indexWait bounds how long a one-shot command waits for the first index build.
const indexWait = 3 * time.Second

// app holds the components one command invocation runs with.
type app struct {
	root     string
	source   config.Source
	cfg      *config.Config
	logger   *zap.Logger
	render   *render.Renderer
	tools    *toolset.Toolset
	index    *retrieval.Index
	cm       *contextmgr.Manager
	provider models.Provider
	workflow *workflow.Workflow
}

// appOptions selects the optional parts of an app.
type appOptions struct {
	// Provider connects the configured model backend and the orchestrator.
	Provider bool
	// Retrieval starts the background workspace index.
	Retrieval bool
	// Getenv resolves API key variables; nil means os.Getenv.
	Getenv func(string) string
}

// newApp loads configuration for the workspace and builds the components.
func newApp(ctx context.Context, flags *globalFlags, out io.Writer, opts appOptions) (*app, error) {
	logger, err := logging.New(flags.verbose)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}

	workspace := flags.workspace
	if workspace == "" {
		if workspace, err = os.Getwd(); err != nil {
			return nil, fmt.Errorf("get working directory: %w", err)
		}
	}
	root, err := path.CanonicaliseRoot(workspace)
	if err != nil {
		return nil, fmt.Errorf("failed to canonicalize workspace root: %w", err)
	}

	loader := config.NewLoader().WithWorkspace(root)
	if flags.configPath != "" {
		loader = loader.WithPath(flags.configPath)
	}
	source := config.NewFileSource(loader)
	cfg, err := source.Current()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	ts, err := toolset.Build(toolset.Options{Root: root, Source: source, Logger: logger})
	if err != nil {
		return nil, fmt.Errorf("build tools: %w", err)
	}

	a := &app{
		root:   root,
		source: source,
		cfg:    cfg,
		logger: logger,
		render: newRenderer(out),
		tools:  ts,
	}

	var retriever contextmgr.RetrievalProvider
	if opts.Retrieval {
		a.index = retrieval.New(root, ts.FS, ts.Ignore, retrieval.Options{}, logger.Named("retrieval"))
		a.index.Start(ctx)
		if !a.index.Wait(ctx, indexWait) {
			logger.Warn("workspace index not ready, continuing without snippets", zap.Duration("waited", indexWait))
		}
		retriever = a.index
	}
	a.cm = contextmgr.New(contextmgr.OptionsFromConfig(cfg.Context), retriever, nil, logger.Named("context"))

	deps := workflow.Deps{
		Context:  a.cm,
		Registry: ts.Registry,
		Config:   source,
		Logger:   logger.Named("workflow"),
	}
	if opts.Provider {
		p, err := provider.New(ctx, cfg.Provider, opts.Getenv, logger.Named("provider"))
		if err != nil {
			return nil, err
		}
		a.provider = p
		tm := toolmanager.NewToolManager(ts.Registry, logger.Named("tools"))
		deps.Provider = p
		deps.Orchestrator = loop.NewLoop(p, tm, logger.Named("loop"))
	}
	a.workflow = workflow.New(deps)

	logger.Debug("app ready",
		zap.String("workspace", root),
		zap.Int("tools", ts.Registry.Len()),
		zap.Bool("provider", a.provider != nil),
	)
	return a, nil
}

func newRenderer(out io.Writer) *render.Renderer {
	f, ok := out.(*os.File)
	return render.New(out, ok && term.IsTerminal(int(f.Fd())))
}

// openSessions opens the session store named by the configuration.
func (a *app) openSessions() (*session.Store, error) {
	dir := a.cfg.Session.DataDir
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve session dir: %w", err)
		}
		dir = filepath.Join(home, ".config", config.ConfigDir, "sessions")
	}
	return session.Open(dir, a.logger.Named("session"))
}

// resume restores the conversation named by id, or the latest one of the
// workspace when id is empty. It returns the session ID to save under.
func (a *app) resume(ctx context.Context, store *session.Store, id string) (string, error) {
	var (
		sess *session.Session
		err  error
	)
	if id != "" {
		sess, err = store.Load(ctx, id)
	} else {
		sess, err = store.Latest(ctx, a.root)
	}
	if errors.Is(err, session.ErrNotFound) && id == "" {
		return "", nil
	}
	if err != nil {
		return "", err
	}

	var state contextmgr.State
	if err := decodeState(sess.State, &state); err != nil {
		return "", fmt.Errorf("session %s: %w", sess.ID, err)
	}
	a.cm.Restore(state)
	a.logger.Debug("session resumed", zap.String("id", sess.ID), zap.Int("messages", len(state.Messages)))
	return sess.ID, nil
}

// persist saves the current conversation and returns its session ID.
func (a *app) persist(ctx context.Context, store *session.Store, id string) (string, error) {
	data, err := encodeState(a.cm.Snapshot())
	if err != nil {
		return "", err
	}
	sess, err := store.Save(ctx, id, a.root, data)
	if err != nil {
		return "", err
	}
	return sess.ID, nil
}

// userMessage turns an error into the text shown to the user.
func userMessage(err error) string {
	if errors.Is(err, context.Canceled) {
		return "Cancelled."
	}
	return models.UserMessage(err)
}
