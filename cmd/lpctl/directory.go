package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"legalpulse/directory"
)

func (c *cli) searchCmd() *cobra.Command {
	var (
		criteria directory.Criteria
		sortKey  string
	)
	cmd := &cobra.Command{
		Use:   "search [term]",
		Short: "Search and filter the provider directory",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := directory.ParseSortKey(sortKey)
			if err != nil {
				return err
			}
			criteria.Sort = key
			if len(args) == 1 {
				criteria.Search = args[0]
			}
			records, err := c.app.Directory.Search(cmd.Context(), criteria)
			if err != nil {
				return err
			}
			return c.printRecords(records)
		},
	}
	keys := make([]string, len(directory.SortKeys))
	for i, k := range directory.SortKeys {
		keys[i] = string(k)
	}
	cmd.Flags().StringSliceVar(&criteria.Specializations, "specialization", nil, "filter by specialization (repeatable)")
	cmd.Flags().StringSliceVar(&criteria.States, "state", nil, "filter by state (repeatable)")
	cmd.Flags().StringSliceVar(&criteria.Languages, "language", nil, "filter by language (repeatable)")
	cmd.Flags().BoolVar(&criteria.VerifiedOnly, "verified", false, "only verified providers")
	cmd.Flags().StringVar(&sortKey, "sort", string(directory.SortRelevance), "sort order: "+strings.Join(keys, ", "))
	return cmd
}

func (c *cli) showCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one provider",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid provider id %q", args[0])
			}
			record, err := c.app.Directory.GetByID(cmd.Context(), id)
			if err != nil {
				return c.fail(cmd, "Lookup failed", err)
			}
			return c.printRecord(record)
		},
	}
}

func (c *cli) facetsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "facets",
		Short: "List the available filter values",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			facets, err := c.app.Directory.Facets(cmd.Context())
			if err != nil {
				return err
			}
			if c.asJSON {
				return c.printJSON(facets)
			}
			fmt.Fprintf(c.out, "specializations: %s\n", strings.Join(facets.Specializations, ", "))
			fmt.Fprintf(c.out, "states:          %s\n", strings.Join(facets.States, ", "))
			fmt.Fprintf(c.out, "languages:       %s\n", strings.Join(facets.Languages, ", "))
			return nil
		},
	}
}

func (c *cli) suggestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "suggest <term>",
		Short: "Type-ahead suggestions for a search term",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := c.app.Directory.Suggest(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if c.asJSON {
				return c.printJSON(s)
			}
			for _, n := range s.Names {
				fmt.Fprintf(c.out, "name            %s (#%d)\n", n.Name, n.ID)
			}
			for _, v := range s.Specializations {
				fmt.Fprintf(c.out, "specialization  %s\n", v)
			}
			for _, v := range s.States {
				fmt.Fprintf(c.out, "state           %s\n", v)
			}
			for _, v := range s.Cities {
				fmt.Fprintf(c.out, "city            %s\n", v)
			}
			return nil
		},
	}
}
