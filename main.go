package main

import "github.com/Tiliavir/showrun/cmd"

func main() {
	cmd.Execute()
}
