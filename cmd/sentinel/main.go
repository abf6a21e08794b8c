package main

import "github.com/ogulcanaydogan/cloud-budget-sentinel/internal/cli"

func main() {
	cli.Execute()
}
