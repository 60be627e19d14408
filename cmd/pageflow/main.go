package main

import "github.com/devicelab-dev/pageflow/pkg/cli"

func main() {
	cli.Execute()
}
