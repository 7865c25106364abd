package main

import "github.com/petasbytes/solver-agent/internal/cli"

func main() {
	cli.Execute()
}
