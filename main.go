// Command corium-demo is a small collaborator program exercising a
// Container: it installs a couple of interdependent services, runs the
// dispatcher until they settle, and prints a status table. It is
// scope-complete proof that the core library is usable end to end — CLI
// parsing, configuration loading, and presentation all belong here, never
// in the core packages.
package main

import "corium/cmd"

func main() {
	cmd.Execute()
}
