package export

import (
	"bufio"
	"io"

	"chatviewer/internal/app/transcript"
)

// LineFormatter turns a record into one line of the text transcript.
type LineFormatter interface {
	TextLine(rec transcript.MessageRecord) string
}

// WriteText writes records as newline separated lines in the given order.
func WriteText(w io.Writer, f LineFormatter, records []transcript.MessageRecord) error {
	bw := bufio.NewWriter(w)
	for _, rec := range records {
		if _, err := bw.WriteString(f.TextLine(rec)); err != nil {
			return err
		}
		if err := bw.WriteByte('\n'); err != nil {
			return err
		}
	}
	return bw.Flush()
}
