package cmd

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/example/modpack-installer/internal/modpack"
)

var (
	searchPage    int
	searchPerPage int
)

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "List the supported modpack providers",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "KEY\tNAME\tSEARCH\tWEBSITE")
		for _, p := range modpack.AllProviders() {
			fmt.Fprintf(tw, "%s\t%s\t%t\t%s\n", p, p.DisplayName(), p.SupportsSearch(), p.WebsiteURL())
		}
		return tw.Flush()
	},
}

var searchCmd = &cobra.Command{
	Use:   "search <provider> [query]",
	Short: "Search a provider's modpacks; without a query lists popular packs",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := modpack.ParseProvider(args[0])
		if err != nil {
			return err
		}
		query := ""
		if len(args) == 2 {
			query = strings.TrimSpace(args[1])
		}
		perPage := searchPerPage
		if perPage <= 0 {
			perPage = globalConfig.ResultsPerPage
		}
		cat, done, err := catalogOnly(cmd.Context())
		if err != nil {
			return err
		}
		defer done()

		res := cat.Search(cmd.Context(), p, query, searchPage, perPage)
		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tNAME\tAUTHOR\tDOWNLOADS")
		for _, s := range res.Items {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", s.ID, s.Name, s.Author, s.Downloads)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
		fmt.Printf("\n%d of %d results (page %d)\n", len(res.Items), res.Total, max(searchPage, 1))
		return nil
	},
}

var versionsCmd = &cobra.Command{
	Use:   "versions <provider> <id>",
	Short: "List the versions of a modpack, newest first",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := modpack.ParseProvider(args[0])
		if err != nil {
			return err
		}
		cat, done, err := catalogOnly(cmd.Context())
		if err != nil {
			return err
		}
		defer done()

		versions := cat.Versions(cmd.Context(), p, args[1])
		if len(versions) == 0 {
			return fmt.Errorf("no versions found for %s modpack %s", p, args[1])
		}
		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tNAME\tVERSION\tPUBLISHED")
		for _, v := range versions {
			published := ""
			if v.PublishedAt != nil {
				published = *v.PublishedAt
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", v.ID, v.Name, v.VersionNumber, published)
		}
		return tw.Flush()
	},
}

var detailsCmd = &cobra.Command{
	Use:   "details <provider> <id>",
	Short: "Show a modpack's details as JSON",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := modpack.ParseProvider(args[0])
		if err != nil {
			return err
		}
		cat, done, err := catalogOnly(cmd.Context())
		if err != nil {
			return err
		}
		defer done()

		d := cat.Details(cmd.Context(), p, args[1])
		if d == nil {
			return fmt.Errorf("%s modpack %s not found", p, args[1])
		}
		return printJSON(d)
	},
}

func init() {
	searchCmd.Flags().IntVar(&searchPage, "page", 1, "Result page (1-based)")
	searchCmd.Flags().IntVar(&searchPerPage, "per-page", 0, "Results per page (5-100, default from config)")
	rootCmd.AddCommand(providersCmd, searchCmd, versionsCmd, detailsCmd)
}
