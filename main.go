package main

import "orbit/cmd"

func main() {
	cmd.Execute()
}
