package main

import "github.com/kozaktomas/phototag/cmd"

func main() {
	cmd.Execute()
}
