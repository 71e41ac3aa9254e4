package main

import "github.com/0xb0rn3/fastdl/cmd"

func main() {
	cmd.Execute()
}
