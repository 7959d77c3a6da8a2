package main

import "github.com/myclaw/myclaw/cmd"

func main() {
	cmd.Execute()
}
