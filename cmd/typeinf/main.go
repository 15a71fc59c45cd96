package main

import "typeinf/internal/cli"

func main() {
	cli.Execute()
}
