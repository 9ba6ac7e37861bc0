// The main package for the docwatcher executable.
package main

import (
	"github.com/cat-wiki/docwatcher/cmd"
)

func main() {
	cmd.Execute()
}
