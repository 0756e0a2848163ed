// Command cohsim runs random traffic through a set of private caches that
// share a home node and reports how the coherence protocol behaved.
package main

func main() {
	Execute()
}
