package main

import "github.com/pentia/chatcore/internal/cli"

func main() {
	cli.Execute()
}
