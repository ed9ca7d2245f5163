package main

import "github.com/kamir/flume-mbox-source/cmd"

func main() {
	cmd.Execute()
}
