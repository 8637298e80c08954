// Command hydra races external coding-agent CLIs against the same task in
// isolated git worktrees, scores their results, and merges the winner.
package main

func main() {
	Execute()
}
