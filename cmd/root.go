package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"todo-app/app"
	"todo-app/config"
	"todo-app/store"
	"todo-app/theme"
	"todo-app/tui"
	"todo-app/watch"
)

var (
	// ErrTaskNotFound is returned when a task reference matches nothing.
	ErrTaskNotFound = errors.New("task not found")
	// ErrAmbiguousTask is returned when an id prefix matches several tasks.
	ErrAmbiguousTask = errors.New("task reference is ambiguous")
	// ErrCategoryNotFound is returned when a category reference matches nothing.
	ErrCategoryNotFound = errors.New("category not found")

	version = "0.1.0"
)

const closeTimeout = 5 * time.Second

// runtime carries what every command needs after flags are parsed.
type runtime struct {
	v       *viper.Viper
	cfgFile string
	cfg     config.Config
	log     *logrus.Logger
	logFile *os.File
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	rt := &runtime{v: config.New(), log: logrus.New()}

	root := &cobra.Command{
		Use:     "todo",
		Short:   "A small task manager with a terminal UI.",
		Long:    "todo keeps a list of tasks with priorities, categories and due dates.\nRun without a subcommand to open the interactive UI.",
		Version: version,
		Args:    cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return rt.init(cmd, cmd == cmd.Root())
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if rt.logFile != nil {
				_ = rt.logFile.Close()
			}
		},
		RunE:          rt.runUI,
		SilenceUsage:  true,
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&rt.cfgFile, "config", "c", "", "config file (default is ./.todo.yaml or $HOME/.todo.yaml)")
	flags.String("backend", "", "storage backend: file, redis, sqlite or memory")
	flags.String("data-dir", "", "directory used by the file backend")
	flags.String("log-level", "", "log level (debug, info, warn, error)")
	_ = rt.v.BindPFlag("backend", flags.Lookup("backend"))
	_ = rt.v.BindPFlag("data.dir", flags.Lookup("data-dir"))
	_ = rt.v.BindPFlag("log.level", flags.Lookup("log-level"))

	root.AddCommand(
		newAddCmd(rt),
		newListCmd(rt),
		newDoneCmd(rt),
		newEditCmd(rt),
		newRmCmd(rt),
		newClearCmd(rt),
		newCategoryCmd(rt),
		newExportCmd(rt),
		newThemeCmd(rt),
	)
	return root
}

func (rt *runtime) init(cmd *cobra.Command, interactive bool) error {
	cfg, err := config.Load(rt.v, rt.cfgFile)
	if err != nil {
		return err
	}
	rt.cfg = cfg

	level, err := logrus.ParseLevel(cfg.Log.Level)
	if err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	rt.log.SetLevel(level)
	rt.log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	rt.log.SetOutput(cmd.ErrOrStderr())

	// The UI owns the terminal, so logs go to a file instead.
	if interactive && isTerminal(cmd.OutOrStdout()) {
		if err := os.MkdirAll(filepath.Dir(cfg.Log.File), 0o755); err != nil {
			return fmt.Errorf("create log dir: %w", err)
		}
		f, err := os.OpenFile(cfg.Log.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		rt.logFile = f
		rt.log.SetOutput(f)
	}
	return nil
}

// session is an open gateway plus a loaded store.
type session struct {
	gw      store.Gateway
	svc     *app.Service
	closeGW func() error
}

func (rt *runtime) open(ctx context.Context) (*session, error) {
	gw, closeGW, err := rt.cfg.OpenGateway()
	if err != nil {
		return nil, err
	}
	svc := app.New(gw, app.WithLogger(rt.log.WithField("backend", rt.cfg.Backend)))
	if err := svc.Load(ctx); err != nil {
		_ = svc.Close(context.Background())
		_ = closeGW()
		return nil, fmt.Errorf("load tasks: %w", err)
	}
	return &session{gw: gw, svc: svc, closeGW: closeGW}, nil
}

// close drains pending writes before releasing the gateway.
func (s *session) close() error {
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	err := s.svc.Close(ctx)
	if cerr := s.closeGW(); err == nil {
		err = cerr
	}
	return err
}

// withSession opens a session, runs fn and closes the session, reporting the
// first error.
func (rt *runtime) withSession(cmd *cobra.Command, fn func(*session) error) (err error) {
	s, err := rt.open(cmd.Context())
	if err != nil {
		return err
	}
	defer func() {
		if cerr := s.close(); err == nil && cerr != nil {
			err = fmt.Errorf("save: %w", cerr)
		}
	}()
	return fn(s)
}

func (rt *runtime) runUI(cmd *cobra.Command, args []string) error {
	if !isTerminal(cmd.OutOrStdout()) {
		return rt.withSession(cmd, func(s *session) error {
			return printTasks(cmd.OutOrStdout(), s.svc, s.svc.Tasks())
		})
	}

	gw, closeGW, err := rt.cfg.OpenGateway()
	if err != nil {
		return err
	}
	defer func() { _ = closeGW() }()

	ctx := cmd.Context()
	mode, err := theme.Load(ctx, gw, theme.DefaultMode)
	if err != nil {
		rt.log.WithError(err).Warn("using default theme")
	}

	svc := app.New(gw, app.WithLogger(rt.log.WithField("backend", rt.cfg.Backend)))
	defer func() {
		cctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
		defer cancel()
		if err := svc.Close(cctx); err != nil {
			rt.log.WithError(err).Error("close store")
		}
	}()

	m := tui.NewModel(svc, tui.Options{Settings: gw, Theme: mode, Logger: rt.log})
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	svc.OnChange(func() { p.Send(tui.StoreChangedMsg{}) })

	if fileGW, ok := gw.(*store.File); ok && rt.cfg.Watch {
		w, err := watch.New(fileGW.Dir(), func() {
			if err := svc.Reload(ctx); err != nil {
				rt.log.WithError(err).Warn("reload after external change")
			}
		}, watch.Options{Ignore: fileGW.OwnWrite, Logger: rt.log})
		if err != nil {
			rt.log.WithError(err).Warn("file watching disabled")
		} else {
			defer func() { _ = w.Close() }()
		}
	}

	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("run ui: %w", err)
	}
	return nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// resolveTask finds a task by id, or by an id prefix or suffix matching
// exactly one task.
func resolveTask(svc *app.Service, ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", ErrTaskNotFound
	}
	if t, ok := svc.Task(ref); ok {
		return t.ID, nil
	}
	match := ""
	for _, t := range svc.Tasks() {
		if strings.HasPrefix(t.ID, ref) || strings.HasSuffix(t.ID, ref) {
			if match != "" {
				return "", fmt.Errorf("%w: %q", ErrAmbiguousTask, ref)
			}
			match = t.ID
		}
	}
	if match == "" {
		return "", fmt.Errorf("%w: %q", ErrTaskNotFound, ref)
	}
	return match, nil
}

// resolveCategory finds a category by id or case-insensitive name.
func resolveCategory(svc *app.Service, ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if c, ok := svc.Category(ref); ok {
		return c.ID, nil
	}
	for _, c := range svc.Categories() {
		if strings.EqualFold(c.Name, ref) {
			return c.ID, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrCategoryNotFound, ref)
}
