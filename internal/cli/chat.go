package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/knowledge-capture/console/internal/app"
	"github.com/knowledge-capture/console/internal/chat"
	"github.com/knowledge-capture/console/internal/render"
	"github.com/knowledge-capture/console/internal/strategy"
)

func newAskCommand(o *options) *cobra.Command {
	var strategyID string

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask a single question and print the answer with its sources",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := o.build()
			if err != nil {
				return err
			}

			id := a.Selector.Current().ID
			if strategyID != "" {
				id = strategy.ID(strategyID)
			}

			err = a.Chat.SendMessage(cmd.Context(), strings.Join(args, " "), id)
			if errors.Is(err, chat.ErrEmptyQuery) {
				return nil
			}
			if err != nil {
				return err
			}

			printLast(cmd.OutOrStdout(), o.renderer(), a)
			return nil
		},
	}

	cmd.Flags().StringVarP(&strategyID, "strategy", "s", "", "retrieval strategy id (see kbctl strategies)")
	return cmd
}

func newChatCommand(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive conversation",
		Long: `Start an interactive conversation. Lines are sent as questions.
Commands: /strategies lists strategies, /strategy <id> switches,
/quit leaves.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := o.build()
			if err != nil {
				return err
			}
			return runChat(cmd, a, o.renderer())
		},
	}
}

func runChat(cmd *cobra.Command, a *app.App, r *render.Renderer) error {
	out := cmd.OutOrStdout()

	for _, msg := range a.Chat.Messages() {
		r.Message(out, msg)
	}
	fmt.Fprintln(out, render.Dim("strategy: "+a.Selector.Current().Label))

	scanner := bufio.NewScanner(cmd.InOrStdin())
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())

		switch {
		case line == "":
			continue
		case line == "/quit" || line == "/exit":
			return nil
		case line == "/strategies":
			render.Strategies(out, a.Selector.Current().ID)
			continue
		case strings.HasPrefix(line, "/strategy"):
			id := strings.TrimSpace(strings.TrimPrefix(line, "/strategy"))
			if err := a.SelectStrategy(strategy.ID(id)); err != nil {
				fmt.Fprintln(out, render.Error(fmt.Sprintf("unknown strategy %q", id)))
				continue
			}
			fmt.Fprintln(out, render.Dim("strategy: "+a.Selector.Current().Label))
			continue
		}

		a.Chat.SetDraft(line)
		if err := a.Chat.Submit(cmd.Context()); err != nil {
			fmt.Fprintln(out, render.Error(err.Error()))
			continue
		}
		printLast(out, r, a)
	}
}

func printLast(w io.Writer, r *render.Renderer, a *app.App) {
	msgs := a.Chat.Messages()
	if len(msgs) == 0 {
		return
	}
	r.Message(w, msgs[len(msgs)-1])
}
