package main

import "github.com/reloquent/tabledoc/cmd"

func main() {
	cmd.Execute()
}
