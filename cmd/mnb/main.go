// Command mnb runs, renders and serves MIDAS notebooks.
package main

func main() {
	Execute()
}
