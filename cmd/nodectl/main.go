// nodectl is the CLI client for the noded overlay daemon's status API.
package main

import "github.com/ringlink/noded/cmd/nodectl/commands"

func main() {
	commands.Execute()
}
