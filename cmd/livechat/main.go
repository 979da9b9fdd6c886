package main

import "github.com/nfrund/livechat/cmd/livechat/cmd"

func main() {
	cmd.Execute()
}
