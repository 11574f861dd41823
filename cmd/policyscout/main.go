// Package main provides the entry point for the policyscout CLI.
//
// policyscout locates a website's privacy policy, crawls the policy and
// its related pages within a small page budget, and summarizes the text.
//
// Usage:
//
//	policyscout find https://example.com
//	policyscout serve --listen :3000
//	policyscout refresh
//
// See --help for all available options.
package main

func main() {
	Execute()
}
