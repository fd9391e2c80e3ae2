package main

import (
	"maexport/cmd/maexport/cmd"
)

func main() {
	cmd.Execute()
}
