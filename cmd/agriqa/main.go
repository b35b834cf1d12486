// Package main provides the agriqa command-line client: it runs catalogue
// templates and questions against the local store without the HTTP server.
package main

import (
	"os"
)

func main() {
	os.Exit(execute(os.Args[1:]))
}
