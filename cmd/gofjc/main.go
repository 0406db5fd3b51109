package main

import (
	"bufio"
	"fmt"
	"os"

	"github.com/xsemanj/gofj/pkg"
)

// main is a thin shell over pkg.Compiler: read the whole program from
// stdin, write IFJcode24 to stdout, report any *CompileError to stderr
// and exit with its taxonomy code. There are no flags and no file
// argument: stdin/stdout is the entire external interface.
func main() {
	out := bufio.NewWriter(os.Stdout)

	c := gofj.NewCompiler()
	cerr := c.Run(os.Stdin, out)

	if cerr == nil {
		if err := out.Flush(); err != nil {
			panic(err.Error())
		}
		return
	}

	fmt.Fprintln(os.Stderr, cerr)
	os.Exit(cerr.Code)
}
