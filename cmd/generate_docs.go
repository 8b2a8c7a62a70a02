package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"slices"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/spf13/cobra"

	"github.com/teemow/draftbox/internal/server"
)

// toolCategories are rendered in this order. The first match wins.
var toolCategories = []struct {
	title string
	match func(name string) bool
}{
	{"Sign-in Tools", func(name string) bool {
		return strings.HasPrefix(name, "gmail_") && !strings.HasSuffix(name, "_draft")
	}},
	{"Draft Tools", func(name string) bool { return strings.HasSuffix(name, "_draft") }},
	{"Other", func(string) bool { return true }},
}

const signInFlowDoc = `## Sign-in Flow

Call ` + "`gmail_start_oauth_listener`" + ` and open the returned URL. When Google redirects back, the server stores the token and sends a ` + "`notifications/gmail/auth_complete`" + ` notification with ` + "`expires_at`" + ` and ` + "`has_refresh_token`" + `.

Without a local listener, call ` + "`gmail_get_auth_url`" + `, sign in, and pass the ` + "`code`" + ` from the redirect together with the returned ` + "`verifier`" + ` to ` + "`gmail_exchange_code`" + `.

`

func newGenerateDocsCmd() *cobra.Command {
	var outputFile string

	cmd := &cobra.Command{
		Use:   "generate-docs",
		Short: "Generate MCP tool documentation",
		Long: `Generate a markdown reference of the MCP tools draftbox registers.
The tools are read from a freshly built server, so the reference always
matches the binary that produced it.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerateDocs(cmd.OutOrStdout(), cmd.ErrOrStderr(), outputFile)
		},
	}

	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file (default: stdout)")

	return cmd
}

func runGenerateDocs(stdout, stderr io.Writer, outputFile string) error {
	// Describing the tools needs neither credentials nor a callback listener.
	sc := server.NewServerContext(context.Background(),
		server.WithLogger(slog.New(slog.DiscardHandler)),
	)
	defer func() { _ = sc.Shutdown() }()

	mcpSrv, err := newMCPServer(sc)
	if err != nil {
		return err
	}

	var tools []mcp.Tool
	for _, registered := range mcpSrv.ListTools() {
		tools = append(tools, registered.Tool)
	}
	markdown := toolsMarkdown(tools)

	if outputFile == "" {
		_, err = io.WriteString(stdout, markdown)
		return err
	}
	if err := os.WriteFile(outputFile, []byte(markdown), 0o644); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	fmt.Fprintf(stderr, "Documentation written to: %s\n", outputFile)
	return nil
}

func toolsMarkdown(tools []mcp.Tool) string {
	grouped := make(map[string][]mcp.Tool)
	for _, tool := range tools {
		category := toolCategory(tool.Name)
		grouped[category] = append(grouped[category], tool)
	}

	var sb strings.Builder
	sb.WriteString("# MCP Tools Reference\n\n")
	sb.WriteString("Tools available when running draftbox as an MCP server over stdio.\n\n")
	sb.WriteString("**Note:** Generated by `draftbox generate-docs`; do not edit by hand.\n\n")

	sb.WriteString("## Table of Contents\n\n")
	for _, c := range toolCategories {
		if len(grouped[c.title]) > 0 {
			fmt.Fprintf(&sb, "- [%s](#%s)\n", c.title, strings.ToLower(strings.ReplaceAll(c.title, " ", "-")))
		}
	}
	sb.WriteString("\n")
	sb.WriteString(signInFlowDoc)

	for _, c := range toolCategories {
		members := grouped[c.title]
		if len(members) == 0 {
			continue
		}
		slices.SortFunc(members, func(a, b mcp.Tool) int { return strings.Compare(a.Name, b.Name) })

		fmt.Fprintf(&sb, "## %s\n\n", c.title)
		for _, tool := range members {
			sb.WriteString(toolMarkdown(tool))
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

func toolCategory(name string) string {
	for _, c := range toolCategories {
		if c.match(name) {
			return c.title
		}
	}
	return ""
}

func toolMarkdown(tool mcp.Tool) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "### %s\n\n", tool.Name)
	if tool.Description != "" {
		fmt.Fprintf(&sb, "%s\n\n", tool.Description)
	}
	if hints := annotationHints(tool.Annotations); len(hints) > 0 {
		fmt.Fprintf(&sb, "**Hints:** %s\n\n", strings.Join(hints, ", "))
	}

	props := tool.InputSchema.Properties
	if len(props) == 0 {
		return sb.String()
	}
	sb.WriteString("**Arguments:**\n")
	for _, name := range slices.Sorted(maps.Keys(props)) {
		prop, ok := props[name].(map[string]any)
		if !ok {
			continue
		}
		presence := "optional"
		if slices.Contains(tool.InputSchema.Required, name) {
			presence = "required"
		}
		fmt.Fprintf(&sb, "- `%s` (%s): %s\n", name, presence, argumentSummary(prop))
	}
	sb.WriteString("\n")
	return sb.String()
}

// annotationHints lists the hints worth showing. mcp-go marks tools
// destructive unless told otherwise, which is meaningless for read-only ones.
func annotationHints(a mcp.ToolAnnotation) []string {
	if a.ReadOnlyHint != nil && *a.ReadOnlyHint {
		return []string{"read-only"}
	}
	var hints []string
	if a.DestructiveHint != nil && *a.DestructiveHint {
		hints = append(hints, "destructive")
	}
	if a.IdempotentHint != nil && *a.IdempotentHint {
		hints = append(hints, "idempotent")
	}
	return hints
}

func argumentSummary(prop map[string]any) string {
	if desc, ok := prop["description"].(string); ok && desc != "" {
		return desc
	}
	if t, ok := prop["type"].(string); ok {
		return t + " parameter"
	}
	return "any parameter"
}
