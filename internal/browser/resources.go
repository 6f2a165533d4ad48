package browser

import (
	"log/slog"
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// resourceAliases maps config names to CDP resource types.
var resourceAliases = map[string]proto.NetworkResourceType{
	"images":      proto.NetworkResourceTypeImage,
	"fonts":       proto.NetworkResourceTypeFont,
	"media":       proto.NetworkResourceTypeMedia,
	"stylesheets": proto.NetworkResourceTypeStylesheet,
	"xhr":         proto.NetworkResourceTypeXHR,
	"websocket":   proto.NetworkResourceTypeWebSocket,
	"eventsource": proto.NetworkResourceTypeEventSource,
}

// The chat renders its messages through these; blocking them leaves
// nothing to outline.
var neverBlocked = map[proto.NetworkResourceType]bool{
	proto.NetworkResourceTypeDocument: true,
	proto.NetworkResourceTypeScript:   true,
	proto.NetworkResourceTypeXHR:      true,
	proto.NetworkResourceTypeFetch:    true,
}

// blockSet resolves config names, dropping the types the page needs.
func blockSet(names []string, logger *slog.Logger) map[proto.NetworkResourceType]bool {
	set := make(map[proto.NetworkResourceType]bool, len(names))
	for _, name := range names {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			continue
		}
		typ, ok := resourceAliases[name]
		if !ok {
			typ = proto.NetworkResourceType(strings.ToUpper(name[:1]) + name[1:])
		}
		if neverBlocked[typ] {
			logger.Warn("browser: refusing to block resource type", "type", typ)
			continue
		}
		set[typ] = true
	}
	return set
}

// applyResourceBlocking fails requests whose type is in set. The hijack
// router runs until the page closes.
func applyResourceBlocking(page *rod.Page, set map[proto.NetworkResourceType]bool) error {
	router := page.HijackRequests()
	err := router.Add("*", "", func(h *rod.Hijack) {
		if set[h.Request.Type()] {
			h.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
			return
		}
		h.ContinueRequest(&proto.FetchContinueRequest{})
	})
	if err != nil {
		return err
	}
	go router.Run()
	return nil
}
