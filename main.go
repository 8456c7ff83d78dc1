package main

import "codeguru/cmd"

func main() {
	cmd.Execute()
}
