package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
)

// execIface is the command surface the interactive loop dispatches to.
type execIface interface {
	isLoggedIn() bool
	Usage()
	Signup(ctx context.Context) error
	Login(ctx context.Context) error
	Logout(ctx context.Context) error
	Start(ctx context.Context, args []string) error
	Stop(ctx context.Context, args []string) error
	Status(ctx context.Context, args []string) error
	Delete(ctx context.Context, args []string) error
	Export(ctx context.Context) error
	Watch(ctx context.Context) error
	startWatching(ctx context.Context)
	stopWatching()
}

// runREPL reads commands line by line until EOF, "exit" or "quit", writing prompts and
// messages to out. Command errors are printed and the loop continues.
func runREPL(ctx context.Context, a execIface, statusFn func() string, scanner *bufio.Scanner, out io.Writer) {
	report := func(err error) {
		if err != nil {
			fmt.Fprintln(out, "Error:", err)
		}
	}

	for {
		fmt.Fprintf(out, "timers (%s) > ", statusFn())
		if !scanner.Scan() {
			return
		}
		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		switch cmd {
		case "help":
			a.Usage()
			fmt.Fprintln(out, "  watch               Show the latest pushed snapshot")
			fmt.Fprintln(out, "  exit | quit         Leave the program")

		case "signup", "login":
			var err error
			if cmd == "signup" {
				err = a.Signup(ctx)
			} else {
				err = a.Login(ctx)
			}
			report(err)
			if err == nil {
				a.startWatching(ctx)
			}

		case "logout":
			report(a.Logout(ctx))

		case "start":
			report(a.Start(ctx, args))

		case "stop":
			report(a.Stop(ctx, args))

		case "status":
			report(a.Status(ctx, args))

		case "delete":
			report(a.Delete(ctx, args))

		case "export":
			report(a.Export(ctx))

		case "watch":
			report(a.Watch(ctx))

		case "exit", "quit":
			fmt.Fprintln(out, "Bye!")
			return

		default:
			fmt.Fprintln(out, "Unknown command:", cmd)
		}
	}
}
