package main

import "github.com/mj1618/deskmirror/cmd"

func main() {
	cmd.Execute()
}
