package main

import "gaia-strings/internal/cli"

func main() {
	cli.Execute()
}
