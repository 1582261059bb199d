package generate

import (
	"bufio"
	"io"
)

// WordsPerLine is the number of words written before a line break.
const WordsPerLine = 20

// Writer emits generated words in the output text format: words separated
// by single spaces with a newline after every WordsPerLine-th word.
type Writer struct {
	w *bufio.Writer
}

// NewWriter buffers output to w. Call Flush when the run ends.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w)}
}

// Write emits the word produced at step i followed by its separator.
func (w *Writer) Write(i int, word string) error {
	if _, err := w.w.WriteString(word); err != nil {
		return err
	}
	sep := byte(' ')
	if i%WordsPerLine == WordsPerLine-1 {
		sep = '\n'
	}
	return w.w.WriteByte(sep)
}

// Flush writes any buffered words to the underlying writer.
func (w *Writer) Flush() error {
	return w.w.Flush()
}
