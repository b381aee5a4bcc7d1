// Command layerlint checks that a Python project's imports respect its
// layer dependency rules.
package main

import (
	"context"
	"os"

	"github.com/flamingcow/layerlint/internal/cli"
	"github.com/flamingcow/layerlint/internal/errors"
)

func main() {
	code, err := cli.Run(context.Background(), os.Args[1:], os.Stdout, os.Stderr)
	if err != nil {
		errors.Print(os.Stderr, err)
		os.Exit(errors.ExitCode(err))
	}
	os.Exit(code)
}
