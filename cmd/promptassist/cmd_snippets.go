package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"promptassist/internal/snippets"
)

func (a *app) snippetsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snippets",
		Short: "Manage stored snippets",
		Long: `List, add and remove snippet commands.

Commands start with "::" and expand when followed by a space. A running
expander picks up changes immediately.`,
	}
	cmd.AddCommand(a.snippetsListCmd(), a.snippetsAddCmd(), a.snippetsRemoveCmd())
	return cmd
}

func (a *app) openSnippets() (*snippets.Store, error) {
	cfg, err := a.loadConfig()
	if err != nil {
		return nil, err
	}
	return snippets.Open(cfg.Storage.SnippetsPath, quietLogger())
}

func (a *app) snippetsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List snippet commands",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openSnippets()
			if err != nil {
				return err
			}
			all := s.All()
			out := cmd.OutOrStdout()
			if len(all) == 0 {
				fmt.Fprintln(out, "No snippets.")
				return nil
			}
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "COMMAND\tTEXT")
			for _, sn := range all {
				fmt.Fprintf(w, "%s\t%s\n", sn.Command, oneLine(sn.Text, 60))
			}
			return w.Flush()
		},
	}
}

func (a *app) snippetsAddCmd() *cobra.Command {
	var fromStdin bool
	cmd := &cobra.Command{
		Use:   "add <command> [text...]",
		Short: "Add or replace a snippet",
		Example: `  promptassist snippets add ::sig "Best regards, Sam"
  promptassist snippets add ::template --stdin < template.txt`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			command := args[0]
			if !snippets.ValidCommand(command) {
				return fmt.Errorf("%w: %q", snippets.ErrInvalidCommand, command)
			}

			var text string
			switch {
			case fromStdin:
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("read stdin: %w", err)
				}
				text = strings.TrimRight(string(data), "\r\n")
			case len(args) > 1:
				text = strings.Join(args[1:], " ")
			default:
				return fmt.Errorf("no text given for %s (pass it as arguments or use --stdin)", command)
			}

			s, err := a.openSnippets()
			if err != nil {
				return err
			}
			if err := s.Save(command, text); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved %s\n", command)
			return nil
		},
	}
	cmd.Flags().BoolVar(&fromStdin, "stdin", false, "read the snippet text from standard input")
	return cmd
}

func (a *app) snippetsRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "remove <command>",
		Aliases: []string{"rm"},
		Short:   "Remove a snippet",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openSnippets()
			if err != nil {
				return err
			}
			if err := s.Delete(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", args[0])
			return nil
		},
	}
}

// oneLine flattens line breaks and shortens s to max runes for tables.
func oneLine(s string, max int) string {
	s = strings.NewReplacer("\r\n", `\n`, "\n", `\n`, "\t", " ").Replace(s)
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
