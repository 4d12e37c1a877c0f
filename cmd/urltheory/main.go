// Command urltheory trains and queries forests of URL prefix-tree
// classifiers from the command line.
package main

import "github.com/dissemin/urltheory/internal/cmd"

func main() {
	cmd.Execute()
}
