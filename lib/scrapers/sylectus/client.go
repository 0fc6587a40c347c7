package sylectus

import (
	"context"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

// Selector inventory for the portal. This is a fragile, version-pinned
// contract with the third party and will need maintenance when the
// portal markup shifts.
const (
	DefaultLoginURL = "https://www4.sylectus.com/Login.aspx?logout=true"
	DefaultBoardURL = "https://www4.sylectus.com/Main.aspx?page=II14_managepostedloads.asp?loadboard=True"

	corpIDSelector      = "#ctl00_bodyPlaceholder_corporateIdField"
	continueSelector    = "#ctl00_bodyPlaceholder_corpLoginButton"
	usernameSelector    = "#select2-ctl00_bodyPlaceholder_userList-container"
	passwordSelector    = "#ctl00_bodyPlaceholder_userPasswordField"
	loginButtonSelector = "#ctl00_bodyPlaceholder_userLoginButton"

	listingFrameSelector = `iframe#iframe1`
	rowSelector          = "tbody > tr"
	bidButtonSelector    = "td:nth-child(10) > input"
	brokerAnchorSelector = `td:nth-child(1) a.nav[onclick*='promabprofile']`

	emailSelector = "div.popup-content div.trip-info-container > div:nth-child(1) p:nth-child(2) a"
	notesSelector = "div.popup-content div.trip-info-container > div:nth-child(2) > p"
)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"

// NotAvailable is the sentinel value a detail field resolves to when it
// cannot be read from the popup.
const NotAvailable = "N/A"

type Config struct {
	LoginURL string `json:"login_url"`
	BoardURL string `json:"board_url"`

	CorpID   string `json:"corp_id"`
	Username string `json:"username"`
	Password string `json:"password"`

	// CookieFile holds the serialized session cookies; its mtime doubles
	// as the session's last-saved timestamp.
	CookieFile    string        `json:"cookie_file"`
	SessionMaxAge time.Duration `json:"session_max_age"`

	NavigateTimeout time.Duration `json:"navigate_timeout"`
	ListingTimeout  time.Duration `json:"listing_timeout"`
	PopupTimeout    time.Duration `json:"popup_timeout"`
	PopupSettle     time.Duration `json:"popup_settle"`
	FieldTimeout    time.Duration `json:"field_timeout"`
	FieldAttempts   int           `json:"field_attempts"`

	Headless bool `json:"headless"`
}

func (c Config) withDefaults() Config {
	if c.LoginURL == "" {
		c.LoginURL = DefaultLoginURL
	}
	if c.BoardURL == "" {
		c.BoardURL = DefaultBoardURL
	}
	if c.CookieFile == "" {
		c.CookieFile = "cookies.json"
	}
	if c.SessionMaxAge == 0 {
		c.SessionMaxAge = 45 * time.Minute
	}
	if c.NavigateTimeout == 0 {
		c.NavigateTimeout = 20 * time.Second
	}
	if c.ListingTimeout == 0 {
		c.ListingTimeout = 15 * time.Second
	}
	if c.PopupTimeout == 0 {
		c.PopupTimeout = 8 * time.Second
	}
	if c.PopupSettle == 0 {
		c.PopupSettle = 800 * time.Millisecond
	}
	if c.FieldTimeout == 0 {
		c.FieldTimeout = 2 * time.Second
	}
	if c.FieldAttempts == 0 {
		c.FieldAttempts = 3
	}
	return c
}

// Client owns a single browsing context against the portal. It is not
// safe for concurrent use; the pipeline processes one row at a time.
type Client struct {
	cfg Config

	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc

	popup *Popup
}

func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	cfg = cfg.withDefaults()

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-infobars", true),
		chromedp.Flag("disable-popup-blocking", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.UserAgent(userAgent),
	)

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	// launch the browser eagerly so cookie restoration has a live target
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, err
	}

	c := &Client{
		cfg:           cfg,
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
	}
	c.autoDismissDialogs(browserCtx)
	return c, nil
}

// autoDismissDialogs accepts any javascript dialog the page raises so a
// stray confirm() cannot block the run.
func (c *Client) autoDismissDialogs(ctx context.Context) {
	chromedp.ListenTarget(ctx, func(ev interface{}) {
		if _, ok := ev.(*page.EventJavascriptDialogOpening); ok {
			go func() {
				_ = chromedp.Run(ctx, page.HandleJavaScriptDialog(true))
			}()
		}
	})
}

// run executes browser actions with a time bound derived from the
// browsing context, honoring caller cancellation.
func (c *Client) run(ctx context.Context, bound time.Duration, actions ...chromedp.Action) error {
	rctx, cancel := context.WithTimeout(c.browserCtx, bound)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	return chromedp.Run(rctx, actions...)
}

// Close tears down the popup, the browser and the allocator. Safe to
// call from a deferred cleanup regardless of how the run ended.
func (c *Client) Close() {
	c.closePopup()
	c.browserCancel()
	c.allocCancel()
}
