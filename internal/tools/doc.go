// Package tools runs external media binaries and captures their output.
package tools
