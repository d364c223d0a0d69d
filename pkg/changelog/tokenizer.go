// SPDX-License-Identifier: Apache-2.0

package changelog

import (
	"bytes"
	"strings"
	"unicode/utf8"
)

// tokenState is the tokenizer's current lexical mode. Comment carries its
// payload and the state to restore on exit as sibling fields on
// StatementIterator rather than as an embedded/boxed variant, so entering and
// leaving a comment never allocates.
type tokenState int

const (
	stateNormal tokenState = iota
	stateQuoted
	stateEscaped
	stateComment
)

const annotationMarker = "--! "

// StatementIterator walks a changelog's raw bytes and pulls out one
// executable statement at a time. It is single-pass and not safe for
// concurrent use; construct a fresh one per read of a File's content.
type StatementIterator struct {
	content []byte
	pos     int

	state tokenState
	quote byte // opening quote byte, valid in stateQuoted/stateEscaped

	commentPrev      tokenState // state to restore when the comment ends
	commentPrevQuote byte       // quote byte to restore alongside commentPrev
	commentBuf       []byte     // bytes seen since (and including) the opening '-'
}

func newStatementIterator(content []byte) *StatementIterator {
	return &StatementIterator{content: content, state: stateNormal}
}

func isQuoteByte(b byte) bool {
	return b == '\'' || b == '`' || b == '"'
}

func (it *StatementIterator) nextByte() (byte, bool) {
	if it.pos >= len(it.content) {
		return 0, false
	}
	b := it.content[it.pos]
	it.pos++
	return b, true
}

// Next returns the next statement, or ok=false once the content is
// exhausted. Statements that are empty after trimming, or whose bytes are
// not valid UTF-8, are silently skipped rather than ending iteration early.
func (it *StatementIterator) Next() (Statement, bool) {
	for {
		raw, annot, any := it.readRaw()
		if !any {
			return Statement{}, false
		}
		if !utf8.Valid(raw) {
			continue
		}
		text := strings.TrimSpace(string(raw))
		if text == "" {
			continue
		}

		var annotation *Annotation
		if len(annot) > 0 {
			if a, err := parseAnnotation(annot); err == nil {
				annotation = a
			}
		}
		return Statement{Annotation: annotation, Text: text}, true
	}
}

// readRaw consumes bytes up to and including the next statement-terminating
// semicolon (or end of content), returning the accumulated statement bytes
// and any recognized annotation payload. any is false only when there was
// nothing left to read at all.
func (it *StatementIterator) readRaw() (stmt []byte, annot []byte, any bool) {
	if it.pos >= len(it.content) {
		return nil, nil, false
	}

	var pending []byte // at most one requeued byte, processed before reading fresh ones

	for {
		var b byte
		if len(pending) > 0 {
			b = pending[0]
			pending = pending[1:]
		} else {
			var ok bool
			b, ok = it.nextByte()
			if !ok {
				return stmt, annot, true
			}
		}

		terminated, requeue := it.step(b, &stmt, &annot)
		if terminated {
			return stmt, annot, true
		}
		if requeue != nil {
			pending = append(pending, *requeue)
		}
	}
}

// step applies one byte to the FSM, appending to stmt/annot as needed. It
// reports whether the statement is complete (terminating semicolon reached)
// and, when a buffered comment turns out to be a false start, the byte that
// must be reprocessed under the restored state.
func (it *StatementIterator) step(b byte, stmt, annot *[]byte) (terminated bool, requeue *byte) {
	switch it.state {
	case stateNormal:
		switch {
		case b == '-':
			it.state = stateComment
			it.commentPrev = stateNormal
			it.commentBuf = append(it.commentBuf[:0], b)
		case isQuoteByte(b):
			it.state = stateQuoted
			it.quote = b
			*stmt = append(*stmt, b)
		case b == ';':
			return true, nil
		default:
			*stmt = append(*stmt, b)
		}

	case stateQuoted:
		switch {
		case b == '\\':
			it.state = stateEscaped
			*stmt = append(*stmt, b)
		case b == it.quote:
			it.state = stateNormal
			*stmt = append(*stmt, b)
		default:
			*stmt = append(*stmt, b)
		}

	case stateEscaped:
		it.state = stateQuoted
		*stmt = append(*stmt, b)

	case stateComment:
		if b != '-' && len(it.commentBuf) < 2 {
			// lone '-' in ordinary SQL: flush it back into the statement and
			// reprocess b under the restored state.
			*stmt = append(*stmt, it.commentBuf...)
			it.state = it.commentPrev
			it.quote = it.commentPrevQuote
			it.commentBuf = nil
			return false, &b
		}
		if b == '\n' {
			it.evaluateComment(annot)
			it.state = it.commentPrev
			it.quote = it.commentPrevQuote
			it.commentBuf = nil
			return false, nil
		}
		it.commentBuf = append(it.commentBuf, b)
	}

	return false, nil
}

// evaluateComment checks a completed comment line for the `--! ` annotation
// marker and, if present, appends its payload to annot.
func (it *StatementIterator) evaluateComment(annot *[]byte) {
	line := bytes.TrimLeft(it.commentBuf, " \t")
	if !bytes.HasPrefix(line, []byte(annotationMarker)) {
		return
	}
	payload := line[len(annotationMarker):]
	*annot = append(*annot, payload...)
	*annot = append(*annot, '\n')
}
