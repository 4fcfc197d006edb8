package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Check that the store answers",
	Args:  cobra.NoArgs,
	Run:   runPing,
}

func runPing(cmd *cobra.Command, _ []string) {
	c := initContext(cmd.Context(), false)

	ok, err := c.DB.Ping(cmd.Context())
	if err != nil {
		exitError("ping failed: %v", err)
	}
	if !ok {
		color.New(color.FgRed).Println("store did not answer OK")
		exitError("ping failed")
	}
	color.New(color.FgGreen).Print("OK ")
	fmt.Println(c.Config.URL)
}
