package sylectus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/storage"
	"github.com/chromedp/chromedp"
)

// ErrLoginFailed is fatal to a run: without a session there is nothing
// to scrape.
var ErrLoginFailed = errors.New("could not complete portal login")

var errSessionInvalid = errors.New("saved session is stale or invalid")

// AcquireSession leaves the client authenticated and parked on the load
// board. It first tries to resume the saved cookie session and only
// performs a full interactive login when that fails.
func (c *Client) AcquireSession(ctx context.Context) error {
	err := c.resumeSession(ctx)
	if err == nil {
		slog.InfoContext(ctx, "resumed saved portal session")
		return nil
	}
	slog.InfoContext(ctx, "performing full login", "reason", err.Error())
	return c.login(ctx)
}

// resumeSession applies the saved cookie set to the browsing context and
// validates it by navigating straight to the board. A corrupt cookie
// file is deleted outright; a stale or rejected one just reports
// errSessionInvalid.
func (c *Client) resumeSession(ctx context.Context) error {
	info, err := os.Stat(c.cfg.CookieFile)
	if os.IsNotExist(err) {
		return errors.New("no saved session")
	}
	if err != nil {
		return err
	}
	if time.Since(info.ModTime()) >= c.cfg.SessionMaxAge {
		return errSessionInvalid
	}

	raw, err := os.ReadFile(c.cfg.CookieFile)
	if err != nil {
		return err
	}
	var cookies []*network.CookieParam
	if err := json.Unmarshal(raw, &cookies); err != nil {
		if rmErr := os.Remove(c.cfg.CookieFile); rmErr != nil {
			slog.WarnContext(ctx, "could not delete corrupt cookie file", "err", rmErr)
		}
		return fmt.Errorf("corrupt cookie file: %w", err)
	}

	err = c.run(ctx, c.cfg.NavigateTimeout, chromedp.ActionFunc(func(ctx context.Context) error {
		return storage.SetCookies(cookies).Do(ctx)
	}))
	if err != nil {
		return err
	}

	if err := c.gotoBoard(ctx); err != nil {
		return errSessionInvalid
	}
	return nil
}

// login walks the interactive flow: corporate id, continue, username and
// password, submit. A failure anywhere in here aborts the run.
func (c *Client) login(ctx context.Context) error {
	slog.InfoContext(ctx, "logging in from scratch")

	err := c.run(ctx, c.cfg.NavigateTimeout,
		chromedp.Navigate(c.cfg.LoginURL),
		chromedp.WaitVisible(corpIDSelector, chromedp.ByQuery),
		chromedp.SendKeys(corpIDSelector, c.cfg.CorpID, chromedp.ByQuery),
		chromedp.Click(continueSelector, chromedp.ByQuery),
		chromedp.WaitVisible(passwordSelector, chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrLoginFailed, err)
	}

	err = c.run(ctx, c.cfg.NavigateTimeout,
		chromedp.SendKeys(usernameSelector, c.cfg.Username, chromedp.ByQuery),
		chromedp.SendKeys(passwordSelector, c.cfg.Password, chromedp.ByQuery),
		// the login button debounces; give the form a beat before clicking
		chromedp.Sleep(500*time.Millisecond),
		chromedp.Click(loginButtonSelector, chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrLoginFailed, err)
	}

	if err := c.gotoBoard(ctx); err != nil {
		return fmt.Errorf("%w: board unreachable after login: %v", ErrLoginFailed, err)
	}

	if err := c.saveSession(ctx); err != nil {
		slog.WarnContext(ctx, "could not persist session cookies", "err", err)
	}
	return nil
}

func (c *Client) saveSession(ctx context.Context) error {
	var cookies []*network.Cookie
	err := c.run(ctx, c.cfg.NavigateTimeout, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		cookies, err = storage.GetCookies().Do(ctx)
		return err
	}))
	if err != nil {
		return err
	}

	raw, err := json.MarshalIndent(cookieParams(cookies), "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(c.cfg.CookieFile, raw, 0o600); err != nil {
		return err
	}
	slog.InfoContext(ctx, "saved session cookies", "count", len(cookies), "file", c.cfg.CookieFile)
	return nil
}

func cookieParams(cookies []*network.Cookie) []*network.CookieParam {
	params := make([]*network.CookieParam, 0, len(cookies))
	for _, ck := range cookies {
		p := &network.CookieParam{
			Name:     ck.Name,
			Value:    ck.Value,
			Domain:   ck.Domain,
			Path:     ck.Path,
			Secure:   ck.Secure,
			HTTPOnly: ck.HTTPOnly,
			SameSite: ck.SameSite,
		}
		if ck.Expires > 0 {
			expires := cdp.TimeSinceEpoch(time.Unix(int64(ck.Expires), 0))
			p.Expires = &expires
		}
		params = append(params, p)
	}
	return params
}
