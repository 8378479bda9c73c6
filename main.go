package main

import "example.com/backstage/services/skip/cmd"

func main() {
	cmd.Execute()
}
