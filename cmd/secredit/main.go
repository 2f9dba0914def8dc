package main

import "os"

func main() {
	a := newApp()
	if err := newRootCmd(a).Execute(); err != nil {
		// a.log is the zero Logger when flag parsing failed, which still
		// writes errors to stderr.
		a.log.Errorf("%v", err)
		os.Exit(1)
	}
}
