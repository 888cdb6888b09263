package main

import (
	"context"
	"fmt"
	"os"

	"github.com/dmitrijs2005/casevault/internal/client/cli"
)

func main() {
	if err := cli.NewRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
