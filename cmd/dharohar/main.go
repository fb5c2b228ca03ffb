// Command dharohar runs and inspects a Dharohar organ-registry ledger node.
package main

func main() {
	Execute()
}
