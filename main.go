package main

import "github.com/klangd/klang/cmd"

func main() {
	cmd.Execute()
}
