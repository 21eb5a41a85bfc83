package main

import "github.com/kozaktomas/traceon/cmd"

func main() {
	cmd.Execute()
}
