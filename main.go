package main

import "groupfeed/internal/cli"

func main() {
	cli.Execute()
}
