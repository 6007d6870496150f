// Command igharvest harvests post metadata from Instagram profile feeds
// through a real browser session.
package main

func main() {
	Execute()
}
