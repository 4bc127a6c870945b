package main

import "github.com/agentstepper/agentstepper/cmd"

func main() {
	cmd.Execute()
}
