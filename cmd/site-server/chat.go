package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"site-server/internal/chat"
)

func chatCmd() *cobra.Command {
	var instant bool
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Talk to the site assistant in the terminal",
		Long: `Start an interactive chat with the site assistant.

Quick replies are numbered; enter the number to pick one. Type /quit to exit.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := loadConfig()
			if err != nil {
				return err
			}
			delay := chat.RandomDelay(cfg.ReplyDelayMin, cfg.ReplyDelayMax)
			if instant {
				delay = func() time.Duration { return 0 }
			}
			sess := chat.NewSession("cli", nil, chat.Options{Delay: delay})
			sess.SetOpen(true)
			return runREPL(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), sess)
		},
	}
	cmd.Flags().BoolVar(&instant, "instant", false, "reply without the typing delay")
	return cmd
}

func runREPL(ctx context.Context, in io.Reader, out io.Writer, sess *chat.Session) error {
	fmt.Fprintln(out, "Chat with the site assistant. Type /quit to exit.")

	var options []string
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "/quit" {
			return nil
		}
		if n, err := strconv.Atoi(line); err == nil && n >= 1 && n <= len(options) {
			line = options[n-1]
			fmt.Fprintf(out, "(%s)\n", line)
		}

		_, replyCh, err := sess.Submit(line)
		if errors.Is(err, chat.ErrEmptyMessage) {
			continue
		}
		if err != nil {
			return err
		}

		select {
		case reply := <-replyCh:
			fmt.Fprintf(out, "assistant: %s\n", reply.Content)
			options = reply.QuickReplies
			for i, label := range options {
				fmt.Fprintf(out, "  [%d] %s\n", i+1, label)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

