// Command st9ctl inspects and administers an ST9 store.
package main

import (
	"os"

	"github.com/st9db/st9.go/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
