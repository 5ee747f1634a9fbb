package main

import "github.com/notargets/meshrefine/cmd"

func main() {
	cmd.Execute()
}
