package main

import "github.com/MeKo-Tech/ppbatch/cmd/ppbatch/cmd"

func main() {
	cmd.Execute()
}
