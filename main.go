package main

import "github.com/crystaldolphin/researchflow/cmd"

func main() {
	cmd.Execute()
}
