/*
Copyright © 2025 Upkeep HQ <info@upkeephq.dev>
*/
package main

import "github.com/upkeephq/upkeep/cmd"

func main() {
	cmd.Execute()
}
