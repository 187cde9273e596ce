// Package main is the entry point for the etherlab frame toolkit.
package main

import "firestige.xyz/etherlab/cmd"

func main() {
	cmd.Execute()
}
