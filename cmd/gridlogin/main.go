package main

import "github.com/terraconstructs/gridlogin/cmd/gridlogin/cmd"

func main() {
	cmd.Execute()
}
