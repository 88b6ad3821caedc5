// Package cli implements the timer command line: one-shot commands and an interactive loop.
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"timer-tracker/internal/client"
	"timer-tracker/internal/protocol"
)

// ErrUsage marks bad command line input.
var ErrUsage = errors.New("usage error")

type App struct {
	api    *client.APIClient
	store  *client.SessionStore
	cache  *client.Cache
	logger *logrus.Logger
	lines  *bufio.Scanner
	out    io.Writer

	reconnectDelay time.Duration

	mu           sync.Mutex
	stopListener context.CancelFunc
	listenerDone chan struct{}
}

func NewApp(api *client.APIClient, store *client.SessionStore, in io.Reader, out io.Writer, logger *logrus.Logger) *App {
	if logger == nil {
		logger = logrus.New()
	}
	return &App{
		api:            api,
		store:          store,
		cache:          client.NewCache(),
		logger:         logger,
		lines:          bufio.NewScanner(in),
		out:            out,
		reconnectDelay: 3 * time.Second,
	}
}

// Run executes a single command, or the interactive loop when args is empty.
func (a *App) Run(ctx context.Context, args []string) error {
	if err := a.restoreSession(); err != nil {
		return err
	}

	if len(args) == 0 {
		defer a.stopWatching()
		if a.isLoggedIn() {
			a.startWatching(ctx)
		}
		runREPL(ctx, a, a.status, a.lines, a.out)
		return nil
	}
	return a.dispatch(ctx, args[0], args[1:])
}

func (a *App) dispatch(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "signup":
		return a.Signup(ctx)
	case "login":
		return a.Login(ctx)
	case "logout":
		return a.Logout(ctx)
	case "start":
		return a.Start(ctx, args)
	case "stop":
		return a.Stop(ctx, args)
	case "status":
		return a.Status(ctx, args)
	case "delete":
		return a.Delete(ctx, args)
	case "export":
		return a.Export(ctx)
	case "help":
		a.Usage()
		return nil
	default:
		return fmt.Errorf("%w: unknown command %q", ErrUsage, cmd)
	}
}

func (a *App) restoreSession() error {
	token, err := a.store.Load()
	if err != nil {
		return err
	}
	a.api.SetToken(token)
	return nil
}

func (a *App) isLoggedIn() bool {
	return a.api.Token() != ""
}

func (a *App) status() string {
	if a.isLoggedIn() {
		return "logged in"
	}
	return "not logged in"
}

func (a *App) Usage() {
	fmt.Fprintln(a.out, `Available commands:
  signup              Register a new user
  login               Login with existing user
  logout              Logout current user
  start <description> Start a new timer
  stop <id>           Stop a timer by ID
  status [old|<id>]   Show active, completed or a single timer
  delete <id>         Delete a timer by ID
  export              Upload all timers to object storage`)
}

func (a *App) Signup(ctx context.Context) error {
	return a.authenticate(ctx, a.api.Signup, "Signed up successfully!")
}

func (a *App) Login(ctx context.Context) error {
	return a.authenticate(ctx, a.api.Login, "Logged in successfully!")
}

func (a *App) authenticate(ctx context.Context, call func(context.Context, string, string) (string, error), done string) error {
	username, err := prompt(a.lines, a.out, "Username: ")
	if err != nil {
		return err
	}
	password, err := promptPassword(a.lines, a.out, "Password: ")
	if err != nil {
		return err
	}

	token, err := call(ctx, username, password)
	if err != nil {
		return err
	}
	if err := a.store.Save(token); err != nil {
		return err
	}
	a.api.SetToken(token)
	fmt.Fprintln(a.out, done)
	return nil
}

func (a *App) Logout(ctx context.Context) error {
	if a.isLoggedIn() {
		if err := a.api.Logout(ctx); err != nil {
			return err
		}
	}
	a.stopWatching()
	a.cache.Reset()
	a.api.SetToken("")
	if err := a.store.Clear(); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Logged out successfully!")
	return nil
}

func (a *App) Start(ctx context.Context, args []string) error {
	description := strings.TrimSpace(strings.Join(args, " "))
	if description == "" {
		return fmt.Errorf("%w: description is required, e.g. start \"Working on project\"", ErrUsage)
	}

	timer, err := a.api.StartTimer(ctx, description)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Timer started with ID: %d\n", timer.ID)
	fmt.Fprintf(a.out, "Description: %s\n", timer.Description)
	return nil
}

func (a *App) Stop(ctx context.Context, args []string) error {
	id, err := parseID(args, "stop")
	if err != nil {
		return err
	}

	timer, err := a.api.StopTimer(ctx, id)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Timer stopped: %d\n", timer.ID)
	fmt.Fprintf(a.out, "Duration: %s\n", formatDuration(elapsed(timer)))
	return nil
}

func (a *App) Delete(ctx context.Context, args []string) error {
	id, err := parseID(args, "delete")
	if err != nil {
		return err
	}
	if err := a.api.DeleteTimer(ctx, id); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Timer deleted: %d\n", id)
	return nil
}

func (a *App) Status(ctx context.Context, args []string) error {
	timers, err := a.api.Timers(ctx, false)
	if err != nil {
		return err
	}
	a.cache.Replace(timers)

	switch {
	case len(args) == 0:
		a.printActive(a.cache.Active())
	case args[0] == "old":
		a.printCompleted(a.cache.Completed())
	default:
		id, err := parseID(args, "status")
		if err != nil {
			return err
		}
		for _, t := range timers {
			if t.ID == id {
				printTimer(a.out, t)
				return nil
			}
		}
		return fmt.Errorf("timer with ID %d not found", id)
	}
	return nil
}

// Watch prints the snapshot most recently pushed by the server.
func (a *App) Watch(context.Context) error {
	if !a.cache.Loaded() {
		fmt.Fprintln(a.out, "No snapshot received yet")
		return nil
	}
	a.printActive(a.cache.Active())
	a.printCompleted(a.cache.Completed())
	return nil
}

func (a *App) Export(ctx context.Context) error {
	resp, err := a.api.Export(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Timers exported to %s\n", resp.Location)
	if resp.URL != "" {
		fmt.Fprintf(a.out, "Download: %s\n", resp.URL)
	}
	return nil
}

func (a *App) printActive(timers []protocol.Timer) {
	if len(timers) == 0 {
		fmt.Fprintln(a.out, "No active timers")
		return
	}
	printTable(a.out, "Active timers:", timers)
}

func (a *App) printCompleted(timers []protocol.Timer) {
	if len(timers) == 0 {
		fmt.Fprintln(a.out, "No completed timers")
		return
	}
	printTable(a.out, "Completed timers:", timers)
}

// startWatching runs a push listener until stopWatching or ctx ends. It replaces any running listener.
func (a *App) startWatching(ctx context.Context) {
	a.stopWatching()

	wsURL, err := a.api.WebsocketURL()
	if err != nil {
		a.logger.Warnf("push disabled: %v", err)
		return
	}
	listener := client.NewListener(wsURL, a.api.Token(), a.cache, a.reconnectDelay, a.logger)

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		listener.Run(ctx)
	}()

	a.mu.Lock()
	a.stopListener, a.listenerDone = cancel, done
	a.mu.Unlock()
}

func (a *App) stopWatching() {
	a.mu.Lock()
	cancel, done := a.stopListener, a.listenerDone
	a.stopListener, a.listenerDone = nil, nil
	a.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

func parseID(args []string, cmd string) (int64, error) {
	if len(args) == 0 {
		return 0, fmt.Errorf("%w: timer ID is required, e.g. %s <timer-id>", ErrUsage, cmd)
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid timer id %q", ErrUsage, args[0])
	}
	return id, nil
}
