package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/teemow/draftbox/internal/callback"
	"github.com/teemow/draftbox/internal/gmail"
	"github.com/teemow/draftbox/internal/google"
	"github.com/teemow/draftbox/internal/logging"
)

func newDraftCmd() *cobra.Command {
	var (
		credentials  clientFlags
		callbackAddr string
		subject      string
		body         string
		noBrowser    bool
		timeout      time.Duration
		debugMode    bool
	)

	cmd := &cobra.Command{
		Use:   "draft",
		Short: "Sign in through the browser and create one Gmail draft",
		Long: `Open the Google consent page, wait for the redirect on the local callback
listener and create a draft with the given subject and body.

The redirect must carry the state parameter of the consent URL.
Use --body - to read the body from stdin. The created draft is printed as JSON.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("callback-addr") {
				if addr := os.Getenv("DRAFTBOX_CALLBACK_ADDR"); addr != "" {
					callbackAddr = addr
				}
			}
			if body == "-" {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("failed to read body from stdin: %w", err)
				}
				body = string(data)
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			if timeout > 0 {
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			open := openBrowser
			if noBrowser {
				open = nil
			}

			flow := &draftFlow{
				creds:        credentials.credentials(),
				callbackAddr: callbackAddr,
				open:         open,
				prompt:       cmd.ErrOrStderr(),
				logger:       logging.NewLogger(cmd.ErrOrStderr(), debugMode),
			}
			draft, err := flow.run(ctx, subject, body)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), draft)
		},
	}

	credentials.register(cmd)
	cmd.Flags().StringVar(&callbackAddr, "callback-addr", defaultCallbackAddr, "Address of the OAuth callback listener. Can also use DRAFTBOX_CALLBACK_ADDR env var.")
	cmd.Flags().StringVarP(&subject, "subject", "s", "", "Draft subject")
	cmd.Flags().StringVarP(&body, "body", "b", "", "Draft body, or - to read it from stdin")
	cmd.Flags().BoolVar(&noBrowser, "no-browser", false, "Print the consent URL instead of opening a browser")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Give up waiting for the redirect after this long (0 waits until interrupted)")
	cmd.Flags().BoolVar(&debugMode, "debug", false, "Enable debug logging")
	_ = cmd.MarkFlagRequired("subject")

	return cmd
}

// draftFlow signs in with a one-shot callback listener and creates a single
// draft with the resulting token.
type draftFlow struct {
	creds        google.Credentials
	callbackAddr string
	oauthOpts    []google.Option
	composerOpts []gmail.Option

	// open shows the consent URL to the user. When nil or failing, the URL is
	// only printed to prompt.
	open   func(url string) error
	prompt io.Writer
	logger *slog.Logger
}

func (f *draftFlow) run(ctx context.Context, subject, body string) (*gmail.Draft, error) {
	client, err := google.NewOAuthClient(f.creds, f.oauthOpts...)
	if err != nil {
		return nil, err
	}
	req, err := client.AuthURL()
	if err != nil {
		return nil, err
	}

	store := google.NewStore(func(creds google.Credentials) (google.Refresher, error) {
		return google.NewOAuthClient(creds, f.oauthOpts...)
	}, google.WithStoreLogger(logging.WithComponent(f.logger, "token_store")))

	listener, err := callback.Listen(f.callbackAddr, callback.Config{
		Exchanger: client,
		Verifier:  req.Verifier,
		Store:     store,
	},
		callback.WithStateValidation(req.State),
		callback.WithLogger(logging.NewSlogAdapter(logging.WithComponent(f.logger, "callback"))),
	)
	if err != nil {
		return nil, err
	}

	fmt.Fprintf(f.prompt, "Open this URL to sign in to Gmail:\n\n  %s\n\n", req.URL)
	if f.open != nil {
		if err := f.open(req.URL); err != nil {
			f.logger.Debug("Failed to open browser", logging.Err(err))
		}
	}

	if _, err := listener.Run(ctx); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("timed out waiting for the OAuth redirect: %w", err)
		}
		return nil, fmt.Errorf("sign-in did not complete: %w", err)
	}

	composer := gmail.NewComposer(store, append([]gmail.Option{
		gmail.WithLogger(logging.WithComponent(f.logger, "gmail")),
	}, f.composerOpts...)...)
	return composer.CreateDraft(ctx, subject, body)
}

func openBrowser(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "linux":
		cmd = exec.Command("xdg-open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		return fmt.Errorf("don't know how to open a browser on %s", runtime.GOOS)
	}
	return cmd.Start()
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
