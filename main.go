package main

import (
	"mmn-tracker/internal/cli"
)

func main() {
	cli.Execute()
}
