package main

import "github.com/Hoarfrost42/Agent-Round/internal/cli"

func main() {
	cli.Execute()
}
