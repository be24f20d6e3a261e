// Command jakardb serves PostgreSQL tables through write-back caches.
package main

import "os"

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
