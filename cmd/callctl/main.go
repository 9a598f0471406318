package main

import "github.com/audiolive/signaling/cmd/callctl/cmd"

func main() {
	cmd.Execute()
}
