package main

import "github.com/florinutz/rowsync/cmd"

func main() {
	cmd.Execute()
}
