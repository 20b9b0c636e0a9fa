package shell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/bytedance/sonic"
	"github.com/spf13/cobra"

	"github.com/GriffinCanCode/tabshell/internal/domain/bookmark"
	"github.com/GriffinCanCode/tabshell/internal/domain/session"
	"github.com/GriffinCanCode/tabshell/internal/shared/id"
)

// Exec runs one shell command line, already split into words.
func (a *App) Exec(ctx context.Context, args []string) error {
	root := a.commands()
	root.SetArgs(args)
	root.SetOut(a.out)
	root.SetErr(a.out)
	return root.ExecuteContext(ctx)
}

func (a *App) commands() *cobra.Command {
	root := &cobra.Command{
		Use:           "tabshell",
		Short:         "Tabbed browsing shell",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.CompletionOptions.DisableDefaultCmd = true

	root.AddCommand(
		a.newTabsCmd(),
		a.newOpenCmd(),
		a.newCloseCmd(),
		a.newSwitchCmd(),
		a.newGoCmd(),
		a.newStepCmd("back", "Go back in the active tab", a.session.Back),
		a.newStepCmd("forward", "Go forward in the active tab", a.session.Forward),
		a.newStepCmd("refresh", "Reload the active tab", a.session.Refresh),
		a.newHistoryCmd(),
		a.newBookmarksCmd(),
		a.newSetCmd(),
		a.newPrefsCmd(),
	)
	return root
}

func (a *App) newTabsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tabs",
		Short: "List open tabs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			active := a.session.ActiveTab().ID
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 2, 2, ' ', 0)
			for i, t := range a.session.Tabs() {
				mark := " "
				if t.ID == active {
					mark = "*"
				}
				state := ""
				if t.Loading {
					state = "loading"
				}
				fmt.Fprintf(w, "%s %d\t%s\t%s\t%s\n", mark, i+1, t.Name, t.URL, state)
			}
			return w.Flush()
		},
	}
}

func (a *App) newOpenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "open [url or search]",
		Short: "Open a new tab, at the homepage when no input is given",
		RunE: func(cmd *cobra.Command, args []string) error {
			t := a.session.OpenTab(strings.Join(args, " "))
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", t.Name, t.URL)
			return nil
		},
	}
}

func (a *App) newCloseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "close [tab]",
		Short: "Close a tab (default: the active one)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tab := a.session.ActiveTab().ID
			if len(args) == 1 {
				var err error
				if tab, err = a.lookupTab(args[0]); err != nil {
					return err
				}
			}
			closed, err := a.session.CloseTab(tab)
			if err != nil {
				return err
			}
			if !closed {
				fmt.Fprintln(cmd.OutOrStdout(), "the last tab stays open")
			}
			return nil
		},
	}
}

func (a *App) newSwitchCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "switch <tab>",
		Aliases: []string{"tab"},
		Short:   "Make a tab active by number, name or id",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tab, err := a.lookupTab(strings.Join(args, " "))
			if err != nil {
				return err
			}
			return a.session.ActivateTab(tab)
		},
	}
}

func (a *App) newGoCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "go <url or search>",
		Aliases: []string{"nav"},
		Short:   "Navigate the active tab",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := a.session.Navigate(cmd.Context(), a.session.ActiveTab().ID, strings.Join(args, " "))
			if err != nil {
				return err
			}
			if res.External {
				fmt.Fprintf(cmd.OutOrStdout(), "opened in the system browser: %s\n", res.URL)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "loading %s\n", res.URL)
			return nil
		},
	}
}

func (a *App) newStepCmd(use, short string, step func(id.TabID) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return step(a.session.ActiveTab().ID)
		},
	}
}

func (a *App) newHistoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "Show the active tab's history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			t := a.session.ActiveTab()
			snap, err := a.session.History(t.ID)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for i, u := range snap.Entries {
				mark := " "
				if i == snap.Cursor {
					mark = ">"
				}
				fmt.Fprintf(out, "%s %d %s\n", mark, i+1, u)
			}
			fmt.Fprintf(out, "%s %.0f%%\n", snap.State, snap.Progress)
			return nil
		},
	}
}

func (a *App) newBookmarksCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "bookmarks",
		Aliases: []string{"bm"},
		Short:   "Manage bookmarks",
	}

	var sortBy string
	list := &cobra.Command{
		Use:     "list [filter]",
		Aliases: []string{"ls"},
		Short:   "List bookmarks",
		RunE: func(cmd *cobra.Command, args []string) error {
			q := bookmark.Query{Text: strings.Join(args, " "), Sort: bookmark.ParseSort(sortBy)}
			items, err := a.store.List(cmd.Context(), q)
			if err != nil {
				return err
			}
			return printBookmarks(cmd.OutOrStdout(), items)
		},
	}
	list.Flags().StringVar(&sortBy, "sort", "recent", "recent or title")

	add := &cobra.Command{
		Use:   "add [url]",
		Short: "Bookmark a URL (default: the active tab)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			u := a.session.ActiveTab().URL
			if len(args) == 1 {
				u = args[0]
			}
			b, err := a.store.Add(cmd.Context(), u)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "saved %s %s\n", b.ID, b.URL)
			return nil
		},
	}

	rm := &cobra.Command{
		Use:     "rm <id>",
		Aliases: []string{"delete"},
		Short:   "Remove a bookmark",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.store.Remove(cmd.Context(), args[0])
		},
	}

	open := &cobra.Command{
		Use:   "open <id>",
		Short: "Open a bookmark in a new tab",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, b := range a.store.Cached(bookmark.Query{}) {
				if b.ID == args[0] {
					t := a.session.OpenTab(b.URL)
					fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", t.Name, t.URL)
					return nil
				}
			}
			return bookmark.ErrNotFound
		},
	}

	syncCmd := &cobra.Command{
		Use:   "sync",
		Short: "Push local-only bookmarks and pending deletes to the API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			res, err := a.store.Sync(cmd.Context())
			if err != nil {
				return err
			}
			localOnly, tombstones := a.store.Pending()
			fmt.Fprintf(cmd.OutOrStdout(), "pushed %d, purged %d, pending %d adds and %d deletes\n",
				res.Pushed, res.Purged, localOnly, tombstones)
			return nil
		},
	}

	importCmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Bulk import a JSON export into the API",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.remote == nil {
				return bookmark.ErrOffline
			}
			items, err := readImportFile(args[0])
			if err != nil {
				return err
			}
			res, err := a.remote.Import(cmd.Context(), items)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d, skipped %d\n", res.Imported, res.Skipped)
			return nil
		},
	}

	export := &cobra.Command{
		Use:   "export [file]",
		Short: "Write bookmarks as JSON (default: stdout)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			items, err := a.store.List(cmd.Context(), bookmark.Query{})
			if err != nil {
				return err
			}
			data, err := sonic.ConfigStd.MarshalIndent(items, "", "  ")
			if err != nil {
				return err
			}
			if len(args) == 0 {
				_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
				return err
			}
			return os.WriteFile(args[0], append(data, '\n'), 0o600)
		},
	}

	cmd.AddCommand(list, add, rm, open, syncCmd, importCmd, export)
	return cmd
}

func (a *App) newSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "set <engine|homepage|theme> <value>",
		Short:     "Change a preference",
		Args:      cobra.ExactArgs(2),
		ValidArgs: []string{"engine", "homepage", "theme"},
		RunE: func(cmd *cobra.Command, args []string) error {
			applied, err := a.setPref(args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s = %s\n", args[0], applied)
			return nil
		},
	}
}

func (a *App) newPrefsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "prefs",
		Short: "Show preferences",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p := a.Prefs()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "homepage: %s\n", p.Homepage)
			fmt.Fprintf(out, "engine:   %s\n", p.SearchEngine)
			fmt.Fprintf(out, "theme:    %s\n", p.Theme)
			fmt.Fprintf(out, "file:     %s\n", a.prefs.Path())
			return nil
		},
	}
}

// lookupTab accepts a 1-based position, a tab name or a tab id.
func (a *App) lookupTab(ref string) (id.TabID, error) {
	ref = strings.TrimSpace(ref)
	tabs := a.session.Tabs()
	if n, err := strconv.Atoi(ref); err == nil {
		if n < 1 || n > len(tabs) {
			return "", fmt.Errorf("%w: %d", session.ErrTabNotFound, n)
		}
		return tabs[n-1].ID, nil
	}
	for _, t := range tabs {
		if strings.EqualFold(t.Name, ref) || string(t.ID) == ref {
			return t.ID, nil
		}
	}
	return "", fmt.Errorf("%w: %s", session.ErrTabNotFound, ref)
}

func printBookmarks(out io.Writer, items []bookmark.Bookmark) error {
	if len(items) == 0 {
		_, err := fmt.Fprintln(out, "no bookmarks")
		return err
	}
	w := tabwriter.NewWriter(out, 0, 2, 2, ' ', 0)
	for _, b := range items {
		flag := ""
		if b.Local {
			flag = "local"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", b.ID, b.DisplayTitle(), b.URL, flag)
	}
	return w.Flush()
}

// readImportFile accepts a JSON array or {"bookmarks": [...]}.
func readImportFile(path string) ([]bookmark.ImportItem, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var items []bookmark.ImportItem
	if err := sonic.Unmarshal(data, &items); err == nil {
		return items, nil
	}
	var env struct {
		Bookmarks []bookmark.ImportItem `json:"bookmarks"`
	}
	if err := sonic.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if env.Bookmarks == nil {
		return nil, errors.New(path + ": expected an array of bookmarks")
	}
	return env.Bookmarks, nil
}
