// Package main is the entry point of the playground service, a REST and
// WebSocket API for managing groups of development containers.
package main

import (
	"os"

	"playground.evalgo.org/cli"
	"playground.evalgo.org/common"
)

func main() {
	if err := cli.RootCmd.Execute(); err != nil {
		common.Logger.Error(err)
		os.Exit(1)
	}
}
