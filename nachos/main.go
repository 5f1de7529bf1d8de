// Package main is the entry of the nachos command-line tool.
package main

import "github.com/sarchlab/nachos/nachos/cmd"

func main() {
	cmd.Execute()
}
