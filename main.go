package main

import "github.com/jfmyers9/luna/cmd"

func main() {
	cmd.Execute()
}
