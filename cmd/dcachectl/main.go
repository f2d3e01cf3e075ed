// Command dcachectl inspects and maintains dcache caches in a Redis
// keyspace.
package main

import (
	"os"

	"github.com/maruel/subcommands"
)

var application = &subcommands.DefaultApplication{
	Name:  "dcachectl",
	Title: "Inspect and maintain dcache caches stored in Redis.",
	// Keep in alphabetical order of their name.
	Commands: []*subcommands.Command{
		cmdCaches,
		cmdClear,
		cmdEvict,
		cmdGet,
		subcommands.CmdHelp,
	},
}

func main() {
	os.Exit(subcommands.Run(application, nil))
}
