package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/JonMunkholm/kbconsole/internal/console"
)

// entryView is the printed form of an entry.
type entryView struct {
	ID        string   `json:"id" yaml:"id"`
	Question  string   `json:"question" yaml:"question"`
	Answer    string   `json:"answer" yaml:"answer"`
	Notes     string   `json:"notes,omitempty" yaml:"notes,omitempty"`
	Tags      []string `json:"tags" yaml:"tags,flow"`
	CreatedAt string   `json:"created_at,omitempty" yaml:"created_at,omitempty"`
	Modified  string   `json:"modified,omitempty" yaml:"modified,omitempty"`
	Source    string   `json:"source,omitempty" yaml:"source,omitempty"`
	File      string   `json:"file,omitempty" yaml:"file,omitempty"`
}

func toView(e console.Entry) entryView {
	v := entryView{
		ID:        e.ID,
		Question:  e.Question,
		Answer:    e.Answer,
		Notes:     e.Notes,
		Tags:      e.Tags,
		CreatedAt: e.CreatedAt,
		Modified:  e.Modified,
		Source:    e.SourceType(),
	}
	if v.Tags == nil {
		v.Tags = []string{}
	}
	if e.HasFile() {
		v.File = e.FileName()
	}
	return v
}

func listCmd(opts *options) *cobra.Command {
	var (
		query  string
		sorts  []string
		remote bool
		output string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List entries, filtered and sorted like the console",
		Example: `  kbctl list --query billing
  kbctl list --sort created_at:desc --sort id -o yaml
  kbctl list --query refund --remote-query`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			keys, err := parseSortKeys(sorts)
			if err != nil {
				return err
			}
			if output != "table" && output != "json" && output != "yaml" {
				return fmt.Errorf("unknown output format %q (table, json or yaml)", output)
			}

			client, err := opts.client()
			if err != nil {
				return err
			}

			remoteQuery := ""
			if remote {
				remoteQuery = query
			}
			entries, err := client.List(cmd.Context(), remoteQuery)
			if err != nil {
				return err
			}
			if !remote {
				entries = console.Filter(entries, query)
			}
			entries = console.Sort(entries, keys)

			return printEntries(cmd.OutOrStdout(), entries, output)
		},
	}

	cmd.Flags().StringVarP(&query, "query", "q", "", "case-insensitive match on id, question, answer and tags")
	cmd.Flags().StringArrayVarP(&sorts, "sort", "s", nil, "sort key as field or field:desc; repeat for secondary keys")
	cmd.Flags().BoolVar(&remote, "remote-query", false, "let the backend apply --query instead of filtering locally")
	cmd.Flags().StringVarP(&output, "output", "o", "table", "output format: table, json or yaml")
	return cmd
}

// parseSortKeys turns "field[:asc|desc]" flags into sort keys, first flag
// primary.
func parseSortKeys(specs []string) ([]console.SortKey, error) {
	keys := make([]console.SortKey, 0, len(specs))
	seen := make(map[console.Field]bool)
	for _, spec := range specs {
		name, dir, _ := strings.Cut(spec, ":")
		field, err := console.ParseField(name)
		if err != nil {
			return nil, err
		}
		if seen[field] {
			return nil, fmt.Errorf("sort field %q given twice", field)
		}
		seen[field] = true

		key := console.SortKey{Field: field, Dir: console.Asc}
		switch strings.ToLower(dir) {
		case "", "asc":
		case "desc":
			key.Dir = console.Desc
		default:
			return nil, fmt.Errorf("sort direction %q: want asc or desc", dir)
		}
		keys = append(keys, key)
	}
	return keys, nil
}

func printEntries(w io.Writer, entries []console.Entry, format string) error {
	views := make([]entryView, len(entries))
	for i, e := range entries {
		views[i] = toView(e)
	}

	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(views)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(views); err != nil {
			return err
		}
		return enc.Close()
	}

	if len(views) == 0 {
		fmt.Fprintln(w, "No entries.")
		return nil
	}

	cyan := color.New(color.FgCyan)
	yellow := color.New(color.FgYellow)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	cyan.Fprintln(tw, "CREATED\tID\tQUESTION\tTAGS\tFILE")
	for _, v := range views {
		date, _, _ := strings.Cut(v.CreatedAt, "T")
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			orDash(date), v.ID, truncate(v.Question, 60),
			yellow.Sprint(orDash(strings.Join(v.Tags, ", "))), orDash(v.File))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(w, "\n%d entries\n", len(views))
	return nil
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
