// SPDX-License-Identifier: Apache-2.0

// Package changelog holds the changelog tokenizer, the ChangelogFile data
// type and the two catalog implementations (directory-scan and explicit)
// described by the migration engine's CORE.
package changelog

import "bytes"

// File is an immutable (version, name, content) triple. Two Files are equal
// iff their version and content match; ordering is by version.
//
// The content is never copied as a whole by the statement iterator: File
// holds it as a []byte and StatementIterator reads from that same backing
// array, building each statement's text in a buffer of its own.
type File struct {
	version  uint32
	name     string
	content  []byte
	checksum string
}

// NewFile builds a File from an already-loaded version, name and content.
func NewFile(version uint32, name string, content []byte) File {
	return File{version: version, name: name, content: content}
}

// NewFileWithChecksum builds a File that also carries a checksum. The
// checksum is written to the state table but never compared or validated
// by the CORE (see
// DESIGN.md's note on the checksum open question).
func NewFileWithChecksum(version uint32, name string, content []byte, checksum string) File {
	return File{version: version, name: name, content: content, checksum: checksum}
}

// Version returns the numeric version this File represents.
func (f File) Version() uint32 { return f.version }

// Name returns the free-form name portion of the changelog's file name.
func (f File) Name() string { return f.name }

// Content returns the raw SQL text of the changelog.
func (f File) Content() []byte { return f.content }

// Checksum returns the checksum carried by this File, if any.
func (f File) Checksum() string { return f.checksum }

// Equal reports whether f and other represent the same version and content.
func (f File) Equal(other File) bool {
	return f.version == other.version && bytes.Equal(f.content, other.content)
}

// Less orders Files by version, ascending.
func (f File) Less(other File) bool { return f.version < other.version }

// Statements returns a fresh, non-restartable iterator over f's statements.
func (f File) Statements() *StatementIterator {
	return newStatementIterator(f.content)
}
