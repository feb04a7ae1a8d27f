package main

import "github.com/minibot-ai/minibot/cmd"

func main() {
	cmd.Execute()
}
