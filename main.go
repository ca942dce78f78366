package main

import "github.com/aouyang1/quoteframe/cmd"

func main() {
	cmd.Execute()
}
