package main

import "github.com/MeKo-Tech/scanocr/cmd/scanocr/cmd"

func main() {
	cmd.Execute()
}
