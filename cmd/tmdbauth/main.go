package main

import "github.com/tansive/tmdbauth/internal/cli"

func main() {
	cli.Execute()
}
