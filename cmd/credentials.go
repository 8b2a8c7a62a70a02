package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/teemow/draftbox/internal/callback"
	"github.com/teemow/draftbox/internal/google"
)

const defaultCallbackAddr = callback.DefaultAddr

// clientFlags holds the OAuth client credentials given on the command line.
type clientFlags struct {
	clientID     string
	clientSecret string
	redirectURI  string
}

func (f *clientFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.clientID, "client-id", "", "Google OAuth client ID. Can also use GOOGLE_CLIENT_ID env var.")
	cmd.Flags().StringVar(&f.clientSecret, "client-secret", "", "Google OAuth client secret. Can also use GOOGLE_CLIENT_SECRET env var.")
	cmd.Flags().StringVar(&f.redirectURI, "redirect-uri", google.DefaultRedirectURI, "Redirect URI registered for the client. Its host and port must reach the callback listener.")
}

// credentials returns the flag values with environment fallbacks.
func (f *clientFlags) credentials() google.Credentials {
	creds := google.Credentials{
		ClientID:     f.clientID,
		ClientSecret: f.clientSecret,
		RedirectURI:  f.redirectURI,
	}
	if creds.ClientID == "" {
		creds.ClientID = os.Getenv("GOOGLE_CLIENT_ID")
	}
	if creds.ClientSecret == "" {
		creds.ClientSecret = os.Getenv("GOOGLE_CLIENT_SECRET")
	}
	return creds
}
