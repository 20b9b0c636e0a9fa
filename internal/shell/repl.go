package shell

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
)

// Run reads command lines from in until EOF, "exit" or ctx is done. A failing
// command is reported and the loop continues.
func (a *App) Run(ctx context.Context, in io.Reader) error {
	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- sc.Err()
	}()

	fmt.Fprintln(a.out, `tabshell: type "help" for commands, "exit" to quit`)
	for {
		a.prompt()
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-readErr:
					return err
				default:
					return nil
				}
			}
			if done := a.runLine(ctx, line); done {
				return nil
			}
		}
	}
}

// runLine executes one line and reports whether the shell should stop.
func (a *App) runLine(ctx context.Context, line string) bool {
	args := strings.Fields(line)
	if len(args) == 0 {
		return false
	}
	switch args[0] {
	case "exit", "quit":
		return true
	}
	if err := a.Exec(ctx, args); err != nil {
		fmt.Fprintf(a.out, "error: %v\n", err)
	}
	return false
}

func (a *App) prompt() {
	t := a.session.ActiveTab()
	a.mu.Lock()
	theme := a.theme
	a.mu.Unlock()

	marker := ">"
	if theme == "dark" {
		marker = "»"
	}
	fmt.Fprintf(a.out, "[%s] %s %s ", t.Name, t.URL, marker)
}
