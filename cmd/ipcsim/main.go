package main

import (
	"github.com/robotalks/mcuipc/pkg/cli/sh"
	"github.com/robotalks/mcuipc/pkg/config"
)

func init() {
	config.SetupFlags()
}

func main() {
	sh.Main()
}
