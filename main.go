package main

import "github.com/marcus/doable/cmd"

// Version is set via ldflags at build time
var Version = "dev"

func main() {
	cmd.SetVersion(Version)
	cmd.Execute()
}
