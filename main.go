package main

import (
	"context"
	"fmt"
	"os"

	"github.com/supporttools/GoSQLRestore/pkg/cli"
	"github.com/supporttools/GoSQLRestore/pkg/version"
)

func main() {
	cmd := cli.NewRootCommand(version.Get())
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, cli.ErrorMessage(err))
		os.Exit(1)
	}
}
