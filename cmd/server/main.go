package main

import "github.com/blues/launchpad/cmd/server/cmd"

func main() {
	cmd.Execute()
}
