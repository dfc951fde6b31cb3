package main

import "github.com/alinasr783/connect-share/cmd/connectshare/cmd"

func main() {
	cmd.Execute()
}
