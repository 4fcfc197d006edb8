package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	st9 "github.com/st9db/st9.go"
	"github.com/st9db/st9.go/pkg/models"
)

var withQuarantined bool

var getCmd = &cobra.Command{
	Use:   "get <id>...",
	Short: "Print entities by db id",
	Args:  cobra.MinimumNArgs(1),
	Run:   runGet,
}

var quarantineCmd = &cobra.Command{
	Use:   "quarantine <id>",
	Short: "Hide an entity and its children from normal reads",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runQuarantine(cmd, args[0], true)
	},
}

var unquarantineCmd = &cobra.Command{
	Use:   "unquarantine <id>",
	Short: "Make a quarantined entity and its children visible again",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runQuarantine(cmd, args[0], false)
	},
}

var quarantinedCmd = &cobra.Command{
	Use:   "quarantined <id>",
	Short: "Print the quarantine flag of an entity",
	Args:  cobra.ExactArgs(1),
	Run:   runQuarantined,
}

func init() {
	getCmd.Flags().BoolVar(&withQuarantined, "with-quarantined", false, "Include quarantined entities")
}

func runGet(cmd *cobra.Command, args []string) {
	ctx := cmd.Context()
	c := initContext(ctx, true)

	var opts []st9.FindOption
	if withQuarantined {
		opts = append(opts, st9.WithQuarantined())
	}
	missing := 0
	for _, id := range args {
		e, err := find(ctx, c, id, opts...)
		if err != nil {
			exitError("%v", err)
		}
		if e == nil {
			color.New(color.FgYellow).Fprintf(os.Stderr, "%s not found\n", id)
			missing++
			continue
		}
		printEntity(e)
	}
	if missing > 0 {
		os.Exit(1)
	}
}

// find resolves the type from the id prefix before reading it.
func find(ctx context.Context, c *cmdContext, id string, opts ...st9.FindOption) (*models.Entity, error) {
	t, err := c.Registry.TypeOfID(id)
	if err != nil {
		return nil, err
	}
	return c.DB.Find(ctx, t, id, opts...)
}

func runQuarantine(cmd *cobra.Command, id string, on bool) {
	ctx := cmd.Context()
	c := initContext(ctx, true)

	e, err := find(ctx, c, id, st9.WithQuarantined())
	if err != nil {
		exitError("%v", err)
	}
	if e == nil {
		exitError("%s not found", id)
	}
	if on {
		err = c.DB.Quarantine(ctx, e)
	} else {
		err = c.DB.Unquarantine(ctx, e)
	}
	if err != nil {
		exitError("%v", err)
	}
	printFlag(id, on)
}

func runQuarantined(cmd *cobra.Command, args []string) {
	ctx := cmd.Context()
	c := initContext(ctx, false)

	q, err := c.DB.Store().Quarantined(ctx, args[0])
	if err != nil {
		exitError("%v", err)
	}
	printFlag(args[0], q)
}

func printFlag(id string, quarantined bool) {
	fmt.Printf("%s ", id)
	if quarantined {
		color.New(color.FgRed).Println("quarantined")
		return
	}
	color.New(color.FgGreen).Println("visible")
}

func printEntity(e *models.Entity) {
	out := e.AsJSON()
	out["id"] = e.ID()
	if v, ok := e.Version(); ok {
		out["version"] = v
	}
	printJSON(out)
}

func printJSON(v any) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		exitError("failed to render: %v", err)
	}
	fmt.Println(string(b))
}
