// Command idlebit runs the idle game daemon and its save tools.
package main

import "github.com/idle-bit/idlebit/internal/cli"

func main() {
	cli.Execute()
}
