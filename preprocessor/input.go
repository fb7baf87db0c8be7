package preprocessor

import "math"

// Input presents the concatenated source strings as a single stream
// of bytes with line continuations removed. A backslash followed by
// \n, \r\n, or \r is collapsed to nothing while the logical line
// number still advances, matching the behavior mandated for the
// shading language.
type Input struct {
	sources []string
	src     int // source string the read cursor is in
	pos     int // byte offset within the current string
	file    int // reported file number, usually == src, overridden by #line
	line    int // 1-based logical line

	// lineOverflow is set when the logical line counter would exceed
	// the representable range; the stream then reports EOF.
	lineOverflow bool
}

// NewInput creates an input over the source strings. Optional lengths
// may truncate individual strings; a negative length means the whole
// string.
func NewInput(sources []string, lengths []int) *Input {
	trimmed := make([]string, len(sources))
	for i, s := range sources {
		if lengths != nil && i < len(lengths) && lengths[i] >= 0 && lengths[i] < len(s) {
			s = s[:lengths[i]]
		}
		trimmed[i] = s
	}
	return &Input{sources: trimmed, line: 1}
}

// Location returns the position of the next byte to be read.
func (in *Input) Location() Location {
	return Location{File: in.file, Line: in.line}
}

// EOF reports whether the stream is exhausted (or the line counter
// overflowed).
func (in *Input) EOF() bool {
	if in.lineOverflow {
		return true
	}
	for f, p := in.src, in.pos; f < len(in.sources); f++ {
		if p < len(in.sources[f]) {
			return false
		}
		p = 0
	}
	return true
}

func (in *Input) advanceLine() {
	if in.line == math.MaxInt32 {
		in.lineOverflow = true
		return
	}
	in.line++
}

// peekRaw returns the byte at offset n from the current position
// without consuming, ignoring line continuations. ok is false at end
// of input.
func (in *Input) peekRaw(n int) (byte, bool) {
	f, p := in.src, in.pos
	for f < len(in.sources) {
		if p+n < len(in.sources[f]) {
			return in.sources[f][p+n], true
		}
		n -= len(in.sources[f]) - p
		f++
		p = 0
	}
	return 0, false
}

func (in *Input) nextRaw() (byte, bool) {
	for in.src < len(in.sources) {
		if in.pos < len(in.sources[in.src]) {
			c := in.sources[in.src][in.pos]
			in.pos++
			return c, true
		}
		in.src++
		in.pos = 0
		in.file = in.src
	}
	return 0, false
}

// Peek returns the next logical byte without consuming it.
func (in *Input) Peek() (byte, bool) {
	if in.lineOverflow {
		return 0, false
	}
	n := 0
	for {
		c, ok := in.peekRaw(n)
		if !ok {
			return 0, false
		}
		if c != '\\' {
			return c, true
		}
		next, ok := in.peekRaw(n + 1)
		if !ok || (next != '\n' && next != '\r') {
			return c, true
		}
		n += 2
		if next == '\r' {
			if after, ok := in.peekRaw(n); ok && after == '\n' {
				n++
			}
		}
	}
}

// Next consumes and returns the next logical byte. Line continuations
// are skipped here; newlines still appear as '\n' (a lone '\r' is
// normalized to '\n').
func (in *Input) Next() (byte, bool) {
	if in.lineOverflow {
		return 0, false
	}
	for {
		c, ok := in.nextRaw()
		if !ok {
			return 0, false
		}
		if c == '\\' {
			next, nok := in.peekRaw(0)
			if nok && (next == '\n' || next == '\r') {
				in.nextRaw()
				if next == '\r' {
					if after, aok := in.peekRaw(0); aok && after == '\n' {
						in.nextRaw()
					}
				}
				in.advanceLine()
				if in.lineOverflow {
					return 0, false
				}
				continue
			}
			return c, true
		}
		if c == '\r' {
			if next, nok := in.peekRaw(0); nok && next == '\n' {
				in.nextRaw()
			}
			in.advanceLine()
			return '\n', true
		}
		if c == '\n' {
			in.advanceLine()
			return '\n', true
		}
		return c, true
	}
}

// SetLine overrides the logical line number (for #line).
func (in *Input) SetLine(line int) {
	in.line = line
}

// SetFile overrides the reported file number (for #line with a file
// operand). The read cursor is unaffected.
func (in *Input) SetFile(file int) {
	in.file = file
}
