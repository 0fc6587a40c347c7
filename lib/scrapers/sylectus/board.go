package sylectus

import (
	"context"
	"fmt"
	"strings"
	"time"

	"loadscout-backend/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
)

// RawRow is the fixed-position cell text of one listing row, before any
// parsing. Cells keep their multi-line rendering ("city, state\ndate").
type RawRow struct {
	Index                  int
	OriginAndPickup        string
	DestinationAndDelivery string
	TruckAndMiles          string
	PiecesAndWeight        string
	BrokerName             string
}

// HasBroker reports whether the row carries a broker-name anchor. Rows
// without one are filler and carry no posting.
func (r RawRow) HasBroker() bool {
	return strings.TrimSpace(r.BrokerName) != ""
}

const listingReadyJS = `(function() {
	const f = document.querySelector('iframe#iframe1');
	if (!f || !f.contentDocument) return false;
	return f.contentDocument.querySelectorAll('tbody > tr').length > 0;
})()`

const listingHTMLJS = `document.querySelector('iframe#iframe1').contentDocument.documentElement.outerHTML`

const clickBidJS = `(function(i) {
	const f = document.querySelector('iframe#iframe1');
	if (!f || !f.contentDocument) return false;
	const row = f.contentDocument.querySelectorAll('tbody > tr')[i];
	if (!row) return false;
	const btn = row.querySelector('td:nth-child(10) > input');
	if (!btn) return false;
	btn.click();
	return true;
})(%d)`

// gotoBoard navigates to the listing view and waits for the listing
// frame and its rows, within the configured validation timeouts.
func (c *Client) gotoBoard(ctx context.Context) error {
	err := c.run(ctx, c.cfg.NavigateTimeout,
		chromedp.Navigate(c.cfg.BoardURL),
		chromedp.WaitReady(listingFrameSelector, chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("listing frame not reachable: %w", err)
	}
	return c.waitListing(ctx)
}

func (c *Client) waitListing(ctx context.Context) error {
	var ready bool
	if err := c.run(ctx, c.cfg.ListingTimeout, chromedp.Poll(listingReadyJS, &ready)); err != nil {
		return fmt.Errorf("listing rows never appeared: %w", err)
	}
	return nil
}

// Board captures the listing frame and extracts every row. The caller
// must hold an acquired session.
func (c *Client) Board(ctx context.Context) ([]RawRow, error) {
	if err := c.waitListing(ctx); err != nil {
		return nil, err
	}

	var html string
	if err := c.run(ctx, c.cfg.NavigateTimeout, chromedp.Evaluate(listingHTMLJS, &html)); err != nil {
		return nil, fmt.Errorf("could not capture listing frame: %w", err)
	}

	return ParseBoard(html)
}

// ParseBoard extracts the fixed-position cells from a captured listing
// document. It never fails a row; rows missing the broker anchor come
// back with an empty BrokerName.
func ParseBoard(html string) ([]RawRow, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	var rows []RawRow
	doc.Find(rowSelector).Each(func(i int, row *goquery.Selection) {
		cell := func(n int) string {
			sel := row.Find(fmt.Sprintf("td:nth-child(%d)", n)).First()
			if len(sel.Nodes) == 0 {
				return ""
			}
			return htmlutil.RenderedText(sel.Nodes[0])
		}
		rows = append(rows, RawRow{
			Index:                  i,
			OriginAndPickup:        cell(4),
			DestinationAndDelivery: cell(5),
			TruckAndMiles:          cell(7),
			PiecesAndWeight:        cell(8),
			BrokerName:             strings.TrimSpace(row.Find(brokerAnchorSelector).First().Text()),
		})
	})
	return rows, nil
}

// Popup is the detail surface opened for a single row. At most one is
// open at a time.
type Popup struct {
	ctx    context.Context
	cancel context.CancelFunc
}

// ErrBidClick means the row's bid control could not be invoked; the row
// is skipped and the run continues.
var ErrBidClick = fmt.Errorf("could not click bid control")

// OpenDetail closes any previous popup, invokes the row's bid control
// and races the configured timeout for a new browsing surface. A timed
// out wait returns (nil, nil) rather than an error: the row simply has
// no detail available.
func (c *Client) OpenDetail(ctx context.Context, rowIndex int) (*Popup, error) {
	c.closePopup()

	// the watch must be registered before the click fires; the child
	// context unregisters it the moment OpenDetail returns
	wctx, wcancel := context.WithCancel(c.browserCtx)
	defer wcancel()
	targets := chromedp.WaitNewTarget(wctx, func(info *target.Info) bool {
		return info.Type == "page"
	})

	var clicked bool
	err := c.run(ctx, c.cfg.NavigateTimeout, chromedp.Evaluate(fmt.Sprintf(clickBidJS, rowIndex), &clicked))
	if err != nil || !clicked {
		return nil, ErrBidClick
	}

	select {
	case id := <-targets:
		pctx, pcancel := chromedp.NewContext(c.browserCtx, chromedp.WithTargetID(id))
		popup := &Popup{ctx: pctx, cancel: pcancel}
		c.autoDismissDialogs(pctx)
		c.popup = popup
		time.Sleep(c.cfg.PopupSettle)
		return popup, nil
	case <-time.After(c.cfg.PopupTimeout):
		return nil, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Client) closePopup() {
	if c.popup == nil {
		return
	}
	if err := chromedp.Cancel(c.popup.ctx); err != nil {
		c.popup.cancel()
	}
	c.popup = nil
}

var expiredMarkers = []string{
	"expired",
	"no longer accepting",
	"bid period has ended",
	"this order has expired",
}

// Expired checks the popup for the portal's expired/closed wording.
// Errors resolve to false: an unreadable popup is handled by the field
// extraction path, not here.
func (c *Client) Expired(p *Popup) bool {
	if p == nil {
		return false
	}
	tctx, cancel := context.WithTimeout(p.ctx, c.cfg.FieldTimeout)
	defer cancel()

	var body string
	if err := chromedp.Run(tctx, chromedp.Text("body", &body, chromedp.ByQuery)); err != nil {
		return false
	}
	body = strings.ToLower(body)
	for _, marker := range expiredMarkers {
		if strings.Contains(body, marker) {
			return true
		}
	}
	return false
}

// BrokerEmail reads the broker contact address off the popup.
func (c *Client) BrokerEmail(p *Popup) string {
	return c.detailField(p, emailSelector)
}

// BrokerNotes reads the notes paragraph off the popup, with the
// "Notes:" label stripped.
func (c *Client) BrokerNotes(p *Popup) string {
	notes := c.detailField(p, notesSelector)
	notes = strings.TrimSpace(strings.TrimPrefix(notes, "Notes:"))
	if notes == "" {
		return NotAvailable
	}
	return notes
}

// detailField reads one popup field with bounded retries. Every attempt
// re-captures the popup document, since the portal fills these fields
// late. All attempts exhausted resolves to the NotAvailable sentinel.
func (c *Client) detailField(p *Popup, selector string) string {
	if p == nil {
		return NotAvailable
	}
	for attempt := 1; attempt <= c.cfg.FieldAttempts; attempt++ {
		tctx, cancel := context.WithTimeout(p.ctx, c.cfg.FieldTimeout)
		var html string
		err := chromedp.Run(tctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery))
		cancel()
		if err != nil {
			// a detached popup will not come back
			if p.ctx.Err() != nil {
				return NotAvailable
			}
			continue
		}

		text, perr := ExtractDetailField(html, selector)
		if perr == nil && text != "" && text != NotAvailable {
			return text
		}
	}
	return NotAvailable
}

// ExtractDetailField pulls one field's text out of a captured popup
// document.
func ExtractDetailField(html, selector string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(doc.Find(selector).First().Text()), nil
}

// ExpiredText reports whether a captured popup document carries the
// portal's expired/closed wording.
func ExpiredText(html string) bool {
	lower := strings.ToLower(html)
	for _, marker := range expiredMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// EmailSelector and NotesSelector expose the popup field selectors for
// callers that parse captured documents directly.
const (
	EmailSelector = emailSelector
	NotesSelector = notesSelector
)
