package main

import "telegram-drive-relay/cmd"

func main() {
	cmd.Execute()
}
