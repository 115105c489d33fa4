package main

// main hands over to Execute in root.go. Build metadata is injected into
// the variables declared there with -ldflags.
func main() {
	Execute()
}
