package main

import "github.com/dushixiang/homedash/cmd"

func main() {
	cmd.Execute()
}
