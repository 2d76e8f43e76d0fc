package main

import "github.com/jhl-labs/vibe-stats/cmd"

func main() {
	cmd.Execute()
}
