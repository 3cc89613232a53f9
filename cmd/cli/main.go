package main

import (
	"github.com/mchmarny/gof/pkg/cli"
)

func main() {
	cli.Execute()
}
