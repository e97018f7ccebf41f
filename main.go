package main

import "github.com/ddp-org/detectbot/cmd"

func main() {
	cmd.Execute()
}
