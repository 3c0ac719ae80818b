package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"sort"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo-portal/apps/portal/di"
	"github.com/trezcool/masomo-portal/core"
)

func main() {
	c := di.New()

	var exitCode int
	err := c.Invoke(func(deps di.Deps) {
		// other processes sharing the session (redis backend) may log us out
		stop, err := deps.Session.Watch(context.Background())
		if err != nil {
			deps.Logger.Warn(fmt.Sprintf("watching session: %v", err), err)
		} else {
			defer func() { _ = stop() }()
		}

		cli := commandLine{deps: deps, out: os.Stdout}
		if err := cli.run(os.Args); err != nil {
			if err != errHelp {
				printError(err)
			}
			exitCode = 1
		}
	})
	if err != nil {
		log.Fatal(err)
	}
	os.Exit(exitCode)
}

func printError(err error) {
	fmt.Fprintf(os.Stderr, "\nerreur: %s\n", err)
	var vErr *core.ValidationError
	if errors.As(err, &vErr) {
		fields := vErr.FieldMap()
		names := make([]string, 0, len(fields))
		for name := range fields {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(os.Stderr, "  %s: %s\n", name, fields[name])
		}
	}
}
