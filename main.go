package main

import "github.com/frahmantamala/redteam-collab/cmd"

func main() {
	cmd.Execute()
}
