package replicate

import (
	"context"
	"fmt"

	"github.com/georgepadayatti/pdfcompose/compose"
	"github.com/georgepadayatti/pdfcompose/pdf/writer"
	"github.com/georgepadayatti/pdfcompose/stamp"
)

// Replicate appends req.Copies() copies of doc to sink and finishes it.
// A nil sink means a new BufferSink. On error no pages or objects of this
// call stay in the sink.
//
// A single unstamped, unencrypted copy for a buffer returns doc's own
// bytes.
func Replicate(ctx context.Context, doc *compose.PageStream, req CopyRequest, sink Sink) ([]byte, error) {
	if doc == nil || doc.PageCount() == 0 {
		return nil, &compose.InvalidInputError{Stream: compose.StreamBody, Reason: "document has no pages"}
	}
	if req.Encryption != nil && req.Encryption.Password == "" {
		return nil, &EncryptionError{Reason: "empty password"}
	}

	_, buffered := sink.(*BufferSink)
	if (sink == nil || buffered) && req.Copies() == 1 && !req.Watermarked() && req.Encryption == nil {
		return doc.Bytes()
	}
	if sink == nil {
		sink = NewBufferSink()
	}

	w := sink.Document()
	mark := w.Mark()
	out, err := appendCopies(ctx, doc, req, sink)
	if err != nil {
		w.Rollback(mark)
		return nil, err
	}
	return out, nil
}

func appendCopies(ctx context.Context, doc *compose.PageStream, req CopyRequest, sink Sink) ([]byte, error) {
	w := sink.Document()
	im := writer.NewImporter(w)

	var stamper *stamp.Stamper
	if req.Watermarked() {
		var err error
		if stamper, err = stamp.NewStamper(w, req.Style); err != nil {
			return nil, err
		}
		for k := 0; k < req.Copies(); k++ {
			if err := stamper.CheckLabel(req.Label(k)); err != nil {
				return nil, fmt.Errorf("copy %d: %w", k, err)
			}
		}
	}

	for k := 0; k < req.Copies(); k++ {
		label := req.Label(k)
		for i := 0; i < doc.PageCount(); i++ {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			page := doc.Page(i)
			var extra []writer.Placement
			if stamper != nil && label != "" {
				pl, err := stamper.Placement(label, page.MediaBox())
				if err != nil {
					return nil, err
				}
				extra = append(extra, pl)
			}
			if _, err := page.Write(im, extra...); err != nil {
				return nil, fmt.Errorf("copy %d page %d: %w", k, i, err)
			}
		}
	}
	return sink.Finish(req.Encryption)
}
