package main

import "github.com/example/modpack-installer/cmd/modpack-installer/cmd"

func main() {
	cmd.Execute()
}
