package main

import "github.com/oshokin/pkg-assembler/cmd/pkg-assembler/cmd"

func main() {
	cmd.Execute()
}
