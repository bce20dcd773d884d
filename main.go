package main

import "interaction-backend/cmd"

func main() {
	cmd.Run()
}
