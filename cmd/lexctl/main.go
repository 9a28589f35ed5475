// The lexctl command provides a command-line interface for operating a
// lexd server.
package main

import "github.com/wrale/wrale-lexdesk/internal/lexctl/cmd"

func main() {
	cmd.Execute()
}
