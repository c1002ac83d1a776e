// Command ssdump opens a heap file read-only and prints its object
// graph as JSON, for inspecting a store without writing a throwaway
// Go program against the ss package directly.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/dpm-go/ss"
)

func main() {
	path := pflag.StringP("path", "p", "", "path to the heap file (required)")
	stat := pflag.Bool("stat", false, "print only the header/size summary, not the object graph")
	help := pflag.BoolP("help", "h", false, "print usage")
	pflag.Parse()

	if *help || *path == "" {
		fmt.Fprintln(os.Stderr, "usage: ssdump --path <heap-file> [--stat]")
		pflag.PrintDefaults()
		if *help {
			return
		}
		os.Exit(2)
	}

	h, err := ss.Open(*path, ss.Read, ss.Config{})
	if err != nil {
		fmt.Fprintf(os.Stderr, "ssdump: %v\n", err)
		os.Exit(1)
	}
	defer h.Close()

	if *stat {
		st := h.Stat()
		fmt.Printf("path:           %s\n", *path)
		fmt.Printf("format version: %d\n", st.FormatVersion)
		fmt.Printf("algorithm:      %d\n", st.Algorithm)
		fmt.Printf("used bytes:     %d\n", st.UsedBytes)
		fmt.Printf("capacity bytes: %d\n", st.CapacityBytes)
		return
	}

	if err := h.Dump(os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "ssdump: %v\n", err)
		os.Exit(1)
	}
}
