// Command cctests runs test programs built on the cctests
// driver and reports their results.
package main

func main() {
	Execute()
}
