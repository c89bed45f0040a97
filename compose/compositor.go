package compose

import "context"

// Compose stacks the header above and the footer below every body page.
// Each composed page is as tall as the three pages it is built from; the
// footer stays at the bottom, the body is moved up by the footer height
// and the header by the body and footer heights.
//
// With no header and no footer the body stream itself is returned.
func Compose(ctx context.Context, plan Plan) (*PageStream, error) {
	if err := plan.Validate(); err != nil {
		return nil, err
	}
	if plan.Header.Mode == ModeAbsent && plan.Footer.Mode == ModeAbsent {
		return plan.Body, nil
	}

	n := plan.Body.PageCount()
	pages := make([]Page, 0, n)
	for i, body := range plan.Body.pages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		header, hasHeader := plan.Header.page(i, n)
		footer, hasFooter := plan.Footer.page(i, n)

		var headerH, footerH float64
		if hasHeader {
			headerH = header.Height()
		}
		if hasFooter {
			footerH = footer.Height()
		}
		bodyH := body.Height()

		page := body.ExtendTop(headerH + bodyH + footerH).Translate(0, footerH)
		if hasHeader {
			page = page.Merge(header.Translate(0, bodyH+footerH))
		}
		if hasFooter {
			page = page.Merge(footer)
		}
		pages = append(pages, page)
	}
	return &PageStream{pages: pages}, nil
}
