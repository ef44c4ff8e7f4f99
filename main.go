// Command floppy reads, writes, and converts floppy disk images over a
// Greaseweazle, SuperCard Pro, or KryoFlux USB adapter.
package main

import "github.com/sergev/floppy/adapter"

func main() {
	adapter.Execute()
}
