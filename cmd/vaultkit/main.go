package main

import "github.com/mkarlsen/vaultkit/internal/cli"

func main() {
	cli.Execute()
}
