// Package main provides the autovol CLI for inspecting and controlling the
// autovold daemon.
package main

func main() {
	Execute()
}
