// Command steerctl is the CLI client for steerd's plain-JSON debug endpoint.
package main

import "github.com/cococorp/steerd/cmd/steerctl/commands"

func main() {
	commands.Execute()
}
