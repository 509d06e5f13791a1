package main

import "github.com/jake-scott/dirigera-bridge/cmd"

func main() {
	cmd.Execute()
}
