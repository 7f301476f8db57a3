package main

import "github.com/quocvuong92/ollama-ctl/cmd"

func main() {
	cmd.Execute()
}
