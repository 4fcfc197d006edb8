package cli

import (
	"errors"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/st9db/st9.go/pkg/constants"
)

var (
	nukeSchema bool
	nukeYes    bool
)

var nukeCmd = &cobra.Command{
	Use:   "nuke",
	Short: "Delete every entity in the store",
	Long: `Delete every entity in the store. Published schemas are kept unless
--schemas is given. Servers refuse this unless started in a mode that allows
it.`,
	Args: cobra.NoArgs,
	Run:  runNuke,
}

func init() {
	nukeCmd.Flags().BoolVar(&nukeSchema, "schemas", false, "Also delete published schemas")
	nukeCmd.Flags().BoolVar(&nukeYes, "yes", false, "Confirm the deletion")
}

func runNuke(cmd *cobra.Command, _ []string) {
	if !nukeYes {
		exitError("refusing to nuke without --yes")
	}
	c := initContext(cmd.Context(), false)

	err := c.DB.Nuke(cmd.Context(), !nukeSchema)
	if errors.Is(err, constants.ErrNukeDisabled) {
		exitError("the server does not allow nuke")
	}
	if err != nil {
		exitError("%v", err)
	}
	color.New(color.FgRed).Println("store wiped")
}
