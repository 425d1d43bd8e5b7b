// Command jvmrun loads a Java class by name and executes one of its
// static methods, per spec.md §6's single external entry point.
package main

import "os"

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
