package main

import "github.com/arzzra/phone_integration/cmd/pilctl/commands"

func main() {
	commands.Execute()
}
