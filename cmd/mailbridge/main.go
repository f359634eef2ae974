package main

import "mailbridge/internal/cli"

func main() {
	cli.Execute()
}
