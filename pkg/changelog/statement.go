// SPDX-License-Identifier: Apache-2.0

package changelog

// Statement is a single, optionally annotated, executable SQL statement
// extracted from a changelog. Text never carries its terminating semicolon,
// a trailing comment line, or leading/trailing whitespace.
type Statement struct {
	Annotation *Annotation
	Text       string
}
