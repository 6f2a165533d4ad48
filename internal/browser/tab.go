package browser

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

// NavigateTimeout bounds the initial page load.
const NavigateTimeout = 30 * time.Second

// OpenTab returns the tab showing pageURL. An existing tab whose URL
// starts with pageURL is reused, so attaching to a browser where the chat
// is already open does not reload it. Otherwise a new tab is created,
// with stealth evasions in headless mode.
func (m *Manager) OpenTab(ctx context.Context, pageURL string) (*rod.Page, error) {
	b := m.Browser()
	if b == nil {
		return nil, fmt.Errorf("browser: no active browser")
	}

	if pageURL != "" {
		if p := findTab(b, pageURL); p != nil {
			m.cfg.Logger.Info("browser: attached to open tab", "url", pageURL)
			return p, nil
		}
	}

	var page *rod.Page
	var err error
	if m.cfg.Mode == ModeHeadless {
		page, err = stealth.Page(b)
	} else {
		page, err = b.Page(proto.TargetCreateTarget{URL: ""})
	}
	if err != nil {
		return nil, fmt.Errorf("browser: create tab: %w", err)
	}

	if set := blockSet(m.cfg.ResourceBlocking, m.cfg.Logger); len(set) > 0 {
		if err := applyResourceBlocking(page, set); err != nil {
			m.cfg.Logger.Warn("browser: resource blocking failed", "error", err)
		}
	}
	if pageURL == "" {
		return page, nil
	}

	navCtx, cancel := context.WithTimeout(ctx, NavigateTimeout)
	defer cancel()

	if err := page.Context(navCtx).Navigate(pageURL); err != nil {
		page.Close()
		return nil, fmt.Errorf("browser: navigate %s: %w", pageURL, err)
	}
	if err := page.Context(navCtx).WaitLoad(); err != nil {
		m.cfg.Logger.Warn("browser: wait load timeout", "url", pageURL, "error", err)
	}
	return page, nil
}

func findTab(b *rod.Browser, prefix string) *rod.Page {
	pages, err := b.Pages()
	if err != nil {
		return nil
	}
	for _, p := range pages {
		info, err := p.Info()
		if err != nil {
			continue
		}
		if strings.HasPrefix(info.URL, prefix) {
			return p
		}
	}
	return nil
}
