package main

import "github.com/jihun-kang/orbisync-node/cmd/nodectl/cmd"

func main() {
	cmd.Execute()
}
