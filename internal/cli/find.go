package cli

import (
	"fmt"
	"slices"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	st9 "github.com/st9db/st9.go"
	"github.com/st9db/st9.go/pkg/cursor"
	"github.com/st9db/st9.go/pkg/query"
)

var (
	pageSize  int
	pageToken string
	fetch     bool
)

var findCmd = &cobra.Command{
	Use:   "find <type> <index> [field.op=value]...",
	Short: "Scan an index",
	Long: `Scan an index of a type and print the matching ids. Terms look like
count=5, count.gt=5 or color.in=red,blue; "null" matches a missing value.
Use the index "all" to list every entity of the type.`,
	Args: cobra.MinimumNArgs(2),
	Run:  runFind,
}

var countCmd = &cobra.Command{
	Use:   "count <type> <counter> [value]...",
	Short: "Read a counter",
	Args:  cobra.MinimumNArgs(2),
	Run:   runCount,
}

func init() {
	for _, cmd := range []*cobra.Command{findCmd, countCmd} {
		cmd.Flags().IntVar(&pageSize, "size", 0, "Page size (0 for the server default)")
		cmd.Flags().StringVar(&pageToken, "token", "", "Page token from a previous run")
	}
	findCmd.Flags().BoolVar(&withQuarantined, "with-quarantined", false, "Include quarantined entities")
	findCmd.Flags().BoolVar(&fetch, "fetch", false, "Print the entities instead of their ids")
}

// parseTerms turns "field.op=value" arguments into index conditions.
func parseTerms(args []string) (query.Fields, error) {
	out := make(query.Fields, len(args))
	for _, arg := range args {
		key, raw, ok := strings.Cut(arg, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("term %q is not field=value", arg)
		}
		if _, dup := out[key]; dup {
			return nil, fmt.Errorf("term %q given twice", key)
		}
		_, op, _ := strings.Cut(key, ".")
		if query.Op(op) == query.OpIn {
			parts := strings.Split(raw, ",")
			list := make([]any, len(parts))
			for i, p := range parts {
				list[i] = parseValue(p)
			}
			out[key] = list
			continue
		}
		out[key] = parseValue(raw)
	}
	return out, nil
}

// parseValue keeps the text as is; attributes coerce it to their own type.
func parseValue(s string) any {
	if s == "null" {
		return nil
	}
	return s
}

func findOptions() []st9.FindOption {
	var opts []st9.FindOption
	if pageSize > 0 {
		opts = append(opts, st9.Size(pageSize))
	}
	if pageToken != "" {
		opts = append(opts, st9.Token(pageToken))
	}
	if withQuarantined {
		opts = append(opts, st9.WithQuarantined())
	}
	return opts
}

func runFind(cmd *cobra.Command, args []string) {
	ctx := cmd.Context()
	c := initContext(ctx, true)

	t, err := c.Registry.Lookup(args[0])
	if err != nil {
		exitError("%v", err)
	}
	terms, err := parseTerms(args[2:])
	if err != nil {
		exitError("%v", err)
	}

	cur, err := c.DB.FindWithIndex(ctx, t, args[1], terms, findOptions()...)
	if err != nil {
		exitError("%v", err)
	}
	if fetch {
		es, err := cur.All(ctx)
		if err != nil {
			exitError("%v", err)
		}
		for _, e := range es {
			printEntity(e)
		}
	} else {
		for _, id := range cur.IDs() {
			fmt.Println(id)
		}
	}
	printTokens(cur.PrevToken(), cur.NextToken())
}

func runCount(cmd *cobra.Command, args []string) {
	ctx := cmd.Context()
	c := initContext(ctx, true)

	t, err := c.Registry.Lookup(args[0])
	if err != nil {
		exitError("%v", err)
	}
	values := make([]any, 0, len(args)-2)
	for _, a := range args[2:] {
		values = append(values, parseValue(a))
	}

	cur, err := c.DB.Count(ctx, t, args[1], values, findOptions()...)
	if err != nil {
		exitError("%v", err)
	}
	printRows(cur)
}

func printRows(cur *cursor.CounterCursor) {
	if cur.Len() == 0 {
		fmt.Println("No rows")
		return
	}
	bold := color.New(color.Bold)
	for _, row := range cur.Rows() {
		keys := make([]string, 0, len(row))
		for k, v := range row {
			if k != "count" {
				keys = append(keys, fmt.Sprintf("%s=%v", k, v))
			}
		}
		bold.Printf("%8d ", row.Count())
		slices.Sort(keys)
		fmt.Println(strings.Join(keys, " "))
	}
}

func printTokens(prev, next string) {
	dim := color.New(color.FgCyan)
	if prev != "" {
		dim.Printf("prev: %s\n", prev)
	}
	if next != "" {
		dim.Printf("next: %s\n", next)
	}
}
