package cmd

import (
	"github.com/spf13/cobra"

	"github.com/teemow/draftbox/internal/google"
)

type authURLOutput struct {
	URL      string `json:"url"`
	Verifier string `json:"verifier"`
	State    string `json:"state"`
}

func newAuthURLCmd() *cobra.Command {
	var credentials clientFlags

	cmd := &cobra.Command{
		Use:   "auth-url",
		Short: "Print a Gmail consent URL and its PKCE verifier",
		Long: `Print a consent URL for the Gmail compose scopes together with the PKCE
verifier and state that belong to it, as JSON.

The verifier is needed to exchange the authorization code Google returns.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := google.NewOAuthClient(credentials.credentials())
			if err != nil {
				return err
			}
			req, err := client.AuthURL()
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), authURLOutput{
				URL:      req.URL,
				Verifier: req.Verifier,
				State:    req.State,
			})
		},
	}

	credentials.register(cmd)
	return cmd
}
