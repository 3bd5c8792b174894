package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"chat-assistant/client"
)

func newChatCmd() *cobra.Command {
	var (
		endpoint string
		apiKey   string
	)

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Talk to a running chat endpoint from the terminal",
		Long: "Interactive chat client. Commands: /key <api key>, /reset, /quit.\n" +
			"The API key defaults to $OPENAI_API_KEY and is never written to disk.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if apiKey == "" {
				apiKey = os.Getenv("OPENAI_API_KEY")
			}
			session := client.NewSession(endpoint, &http.Client{})
			session.SetAPIKey(apiKey)
			return runChat(cmd, session, cmd.InOrStdin())
		},
	}

	cmd.Flags().StringVar(&endpoint, "endpoint", client.DefaultEndpoint, "chat endpoint URL")
	cmd.Flags().StringVar(&apiKey, "api-key", "", "OpenAI API key (default $OPENAI_API_KEY)")
	return cmd
}

func runChat(cmd *cobra.Command, session *client.Session, in io.Reader) error {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "AI Personal Assistant (session %s)\n", session.SessionID())
	if !session.HasAPIKey() {
		fmt.Fprintln(out, "No API key set; use /key <api key>.")
	}

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "You: ")
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
		case line == "/reset":
			session.Reset()
			fmt.Fprintf(out, "Started new conversation (session %s)\n", session.SessionID())
			continue
		case strings.HasPrefix(line, "/key"):
			session.SetAPIKey(strings.TrimSpace(strings.TrimPrefix(line, "/key")))
			if session.HasAPIKey() {
				fmt.Fprintln(out, "API key set.")
			} else {
				fmt.Fprintln(out, "API key cleared.")
			}
			continue
		}

		reply, err := session.Send(cmd.Context(), line)
		switch {
		case errors.Is(err, client.ErrMissingAPIKey):
			fmt.Fprintln(out, "Please enter your OpenAI API key with /key <api key>.")
		case err != nil:
			fmt.Fprintf(out, "Error: %v\n", err)
		default:
			fmt.Fprintf(out, "Assistant: %s\n", reply)
		}
	}
}
