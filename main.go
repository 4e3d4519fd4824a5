package main

import "github.com/HaiFongPan/dermascan-cli/cmd"

func main() {
	cmd.Execute()
}
