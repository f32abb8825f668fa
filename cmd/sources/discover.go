package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/jonesrussell/storesync/cmd/common"
	"github.com/jonesrussell/storesync/internal/domain"
	"github.com/jonesrussell/storesync/internal/fetcher"
	"github.com/jonesrussell/storesync/internal/generator"
	"github.com/jonesrussell/storesync/internal/parser"
	"github.com/jonesrussell/storesync/internal/urlnorm"
)

// NewDiscoverCommand creates the discover command.
func NewDiscoverCommand() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "discover [url]",
		Short: "Discover selectors for a website source",
		Long: `Fetch one listing page and suggest the CSS selectors a website source
needs in its config. With --json the output is the selectors block ready to
paste into the source's config column.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := common.NewCommandDeps()
			if err != nil {
				return fmt.Errorf("failed to get dependencies: %w", err)
			}

			return discover(cmd.Context(), deps, args[0], asJSON)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the selectors block as JSON")

	return cmd
}

// discover fetches the page, runs selector discovery and renders the result.
func discover(ctx context.Context, deps *common.CommandDeps, rawURL string, asJSON bool) error {
	// Marketplace URLs have dedicated parsers; selectors are only needed for
	// generic website sources.
	if p := parser.NewRegistry().ForURL(rawURL); p.Platform() != domain.PlatformWebsite {
		host, _ := urlnorm.Host(rawURL)
		deps.Logger.Warn("url matches a dedicated platform parser",
			"host", host,
			"platform", string(p.Platform()),
			"hint", "configure the source with that platform instead of selectors",
		)
	}

	f := fetcher.NewCollyFetcher(fetcher.Config{
		UserAgent:       deps.Config.Crawler.UserAgent,
		RequestTimeout:  deps.Config.Crawler.RequestTimeout,
		IgnoreRobotsTxt: true,
	})

	page, err := f.Fetch(ctx, rawURL, fetcher.Options{})
	if err != nil {
		return fmt.Errorf("failed to fetch page: %w", err)
	}
	if !page.OK() {
		return fmt.Errorf("page returned status %d", page.StatusCode)
	}

	discovery, err := generator.NewSelectorDiscovery(page.Body)
	if err != nil {
		return fmt.Errorf("failed to analyze page: %w", err)
	}

	result := discovery.DiscoverAll()

	if !result.ProductList.Found() {
		deps.Logger.Warn("no repeating product card pattern detected",
			"url", rawURL,
			"hint", "the page may render products with JavaScript",
		)
	}

	if asJSON {
		return printSelectorJSON(result)
	}

	renderDiscovery(result)
	return nil
}

// printSelectorJSON prints the selectors block for the source config.
func printSelectorJSON(result generator.DiscoveryResult) error {
	out, err := json.MarshalIndent(map[string]any{
		"selectors": result.SelectorConfig(),
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode selectors: %w", err)
	}

	fmt.Println(string(out))
	return nil
}

// renderDiscovery formats the discovery result as a table.
func renderDiscovery(result generator.DiscoveryResult) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)

	t.AppendHeader(table.Row{"Field", "Selector", "Confidence", "Matches", "Sample"})

	for _, c := range []generator.SelectorCandidate{
		result.ProductList,
		result.ProductLink,
		result.Title,
		result.Price,
		result.Images,
		result.NextPage,
	} {
		selector := c.Selector
		if selector == "" {
			selector = "(not found)"
		}
		t.AppendRow(table.Row{
			c.Field,
			selector,
			fmt.Sprintf("%.2f", c.Confidence),
			c.Matches,
			c.Sample,
		})
	}

	t.Render()
}
