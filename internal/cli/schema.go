package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/st9db/st9.go/pkg/models"
)

const maxPublishers = 4

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Manage published type schemas",
}

var schemaPushCmd = &cobra.Command{
	Use:   "push [types.yaml]",
	Short: "Publish the schema of every declared type",
	Long: `Publish the schema of every type declared in the given file, or in the
file named by --schema. Existing schemas are replaced.`,
	Args: cobra.MaximumNArgs(1),
	Run:  runSchemaPush,
}

var schemaShowCmd = &cobra.Command{
	Use:   "show <type>",
	Short: "Print the published schema of a type",
	Args:  cobra.ExactArgs(1),
	Run:   runSchemaShow,
}

func init() {
	schemaCmd.AddCommand(schemaPushCmd)
	schemaCmd.AddCommand(schemaShowCmd)
}

func runSchemaPush(cmd *cobra.Command, args []string) {
	if len(args) == 1 {
		schemaPath = args[0]
	}
	if schemaPath == "" {
		exitError("no types file given")
	}
	ctx := cmd.Context()
	c := initContext(ctx, true)

	types := c.Registry.Types()
	if len(types) == 0 {
		fmt.Println("No types declared")
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxPublishers)
	for _, t := range types {
		g.Go(func() error {
			if err := c.DB.PublishSchema(gctx, t); err != nil {
				return err
			}
			printPublished(t)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		exitError("%v", err)
	}
}

func printPublished(t *models.EntityType) {
	color.New(color.FgGreen).Print("published ")
	fmt.Printf("%s (%d attributes, %d indexes, %d counters)\n",
		t.Name, len(t.Attributes()), len(t.Indexes()), len(t.Counters()))
}

func runSchemaShow(cmd *cobra.Command, args []string) {
	c := initContext(cmd.Context(), false)

	doc, err := c.DB.Store().GetSchema(cmd.Context(), args[0])
	if err != nil {
		exitError("%v", err)
	}
	if doc == nil {
		exitError("no schema published for %s", args[0])
	}
	printJSON(doc)
}
