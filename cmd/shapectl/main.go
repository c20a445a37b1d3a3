package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/promptcad/backend/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	root := cli.NewRootCmd(cli.Options{Verbose: isVerbose()})
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}

func isVerbose() bool {
	v := os.Getenv("PROMPTCAD_DEBUG")
	return v == "1" || strings.EqualFold(v, "true")
}
