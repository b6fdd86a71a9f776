// Package main is the entry point for index-cli.
//
// index-cli launches an ASGI application under uvicorn or gunicorn and
// controls a running gunicorn master through its signal protocol.
package main

import "os"

func main() {
	os.Exit(Execute())
}
