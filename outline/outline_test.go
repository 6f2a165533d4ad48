package outline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/hazyhaar/chattoc/dom"
	"github.com/hazyhaar/chattoc/dom/memdom"
	"github.com/hazyhaar/chattoc/schedule"
)

type recorder struct {
	inits int
	lists []List
}

func (r *recorder) Init() error { r.inits++; return nil }

func (r *recorder) Render(l List) error {
	r.lists = append(r.lists, l)
	return nil
}

func (r *recorder) last() List {
	if len(r.lists) == 0 {
		return List{}
	}
	return r.lists[len(r.lists)-1]
}

type alerts struct {
	alerts  []string
	prompts []string
}

func (a *alerts) Alert(msg string)        { a.alerts = append(a.alerts, msg) }
func (a *alerts) Prompt(msg, text string) { a.prompts = append(a.prompts, text) }

type fixture struct {
	v    *schedule.Virtual
	doc  *memdom.Document
	rec  *recorder
	note *alerts
	e    *Engine
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func userMsg(msgID, text string) string {
	return fmt.Sprintf(`<div data-message-author-role="user" data-message-id="%s">%s</div>`, msgID, text)
}

func botMsg(text string) string {
	return fmt.Sprintf(`<div data-message-author-role="assistant">%s</div>`, text)
}

func page(msgs ...string) string {
	return `<html><body><main class="flex h-full flex-col overflow-y-auto">` +
		strings.Join(msgs, "") + `</main></body></html>`
}

func newFixture(t *testing.T, src string) *fixture {
	t.Helper()
	f := startFixture(t, src, memdom.WithLocation("https://chatgpt.com/c/one"))
	return f
}

func startFixture(t *testing.T, src string, opts ...memdom.Option) *fixture {
	t.Helper()
	v := schedule.NewVirtual(time.Time{})
	f := &fixture{v: v, rec: &recorder{}, note: &alerts{}}
	f.doc = memdom.New(src, append([]memdom.Option{memdom.WithPoster(v.Post)}, opts...)...)
	f.e = New(Config{
		Document:  f.doc,
		Scheduler: v,
		Renderer:  f.rec,
		Notifier:  f.note,
		Logger:    discard(),
	})
	if err := f.e.Start(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(f.e.Stop)
	return f
}

func (f *fixture) main() *memdom.Node { return f.doc.Find("main") }

func (f *fixture) append(t *testing.T, fragment string) {
	t.Helper()
	if _, err := f.doc.AppendHTML(f.main(), fragment); err != nil {
		t.Fatal(err)
	}
}

func TestStart_RendersForced(t *testing.T) {
	f := newFixture(t, page(userMsg("m1", "first"), botMsg("answer"), userMsg("m2", "second")))
	if len(f.rec.lists) != 1 {
		t.Fatalf("renders after Start: got %d, want 1", len(f.rec.lists))
	}
	l := f.rec.last()
	if len(l.Items) != 2 || l.Empty {
		t.Fatalf("list: got %+v", l)
	}
	if l.Items[0].Label != "first" || l.Items[1].SecondaryID != "m2" {
		t.Errorf("items: got %+v", l.Items)
	}
	if f.rec.inits != 1 {
		t.Errorf("Init calls: got %d, want 1", f.rec.inits)
	}
	if err := f.e.Start(); err != ErrStarted {
		t.Errorf("second Start: got %v, want ErrStarted", err)
	}
}

func TestRebuild_SkipsUnchangedCount(t *testing.T) {
	f := newFixture(t, page(userMsg("m1", "a"), userMsg("m2", "b")))
	if f.e.Rebuild(false) {
		t.Fatal("Rebuild(false) with unchanged count rendered")
	}
	if f.e.Rebuild(false) {
		t.Fatal("second Rebuild(false) rendered")
	}
	if len(f.rec.lists) != 1 {
		t.Fatalf("renders: got %d, want 1", len(f.rec.lists))
	}
	if !f.e.Rebuild(true) {
		t.Fatal("Rebuild(true) did not render")
	}
	if got := f.e.Stats().Skipped; got != 2 {
		t.Errorf("Skipped: got %d, want 2", got)
	}
}

func TestRebuild_EqualCountDifferentNodesIsSkipped(t *testing.T) {
	f := newFixture(t, page(userMsg("m1", "a")))
	f.doc.Remove(f.doc.Find(`[data-message-id="m1"]`))
	f.append(t, userMsg("m2", "b"))
	if f.e.Rebuild(false) {
		t.Fatal("count-only comparison should skip an equal-size replacement")
	}
	if got := f.rec.last().Items[0].SecondaryID; got != "m1" {
		t.Errorf("rendered list changed: got %q, want m1", got)
	}
}

func TestScan_DedupAndVisibility(t *testing.T) {
	src := page(
		`<div data-message-author-role="user" data-testid="user-message" data-message-id="m1">both</div>`,
		`<div data-message-author-role="user" data-message-id="m2" hidden>hidden</div>`,
		`<div data-testid="conversation-turn" data-is-user="true">turn</div>`,
	)
	f := newFixture(t, src)
	items := f.rec.last().Items
	if len(items) != 2 {
		t.Fatalf("items: got %d, want 2 (%+v)", len(items), items)
	}
	if items[0].Label != "both" || items[1].Label != "turn" {
		t.Errorf("order: got %q, %q", items[0].Label, items[1].Label)
	}
}

func TestScan_FirstSeenOrderAcrossPredicates(t *testing.T) {
	src := page(
		`<div data-testid="user-message">by testid</div>`,
		userMsg("m1", "by role"),
	)
	f := newFixture(t, src)
	items := f.rec.last().Items
	if len(items) != 2 || items[0].Label != "by role" || items[1].Label != "by testid" {
		t.Fatalf("items: got %+v, want role match first", items)
	}
}

func TestAnchor_StableAcrossReorder(t *testing.T) {
	f := newFixture(t, page(userMsg("m1", "a"), userMsg("m2", "b")))
	first := f.rec.last().Items
	if first[0].ID != "cgpt-anchor-1" || first[1].ID != "cgpt-anchor-2" {
		t.Fatalf("ids: got %q, %q", first[0].ID, first[1].ID)
	}

	n := f.doc.Find(`[data-message-id="m2"]`)
	if v, _ := n.Attr("data-cgpt-anchor"); v != "cgpt-2" {
		t.Errorf("anchor attr: got %q, want cgpt-2", v)
	}

	// Drop m1 and add m3: positions shift, ids must not.
	m1 := f.doc.Find(`[data-message-id="m1"]`)
	f.doc.Remove(m1)
	f.append(t, userMsg("m3", "c"))
	f.e.Rebuild(true)
	items := f.rec.last().Items
	if items[0].ID != "cgpt-anchor-2" {
		t.Errorf("m2 id after reorder: got %q, want cgpt-anchor-2", items[0].ID)
	}
	if items[1].ID == "cgpt-anchor-2" {
		t.Errorf("new node reused an existing id %q", items[1].ID)
	}
}

func TestAnchor_TagTwiceKeepsID(t *testing.T) {
	f := newFixture(t, page(userMsg("m1", "a")))
	n := f.doc.Find(`[data-message-id="m1"]`)
	id1, err := f.e.tag.tag(n, 0)
	if err != nil {
		t.Fatal(err)
	}
	id2, _ := f.e.tag.tag(n, 7)
	if id1 != id2 {
		t.Fatalf("re-tag changed id: %q -> %q", id1, id2)
	}
	n.SetAttr("data-message-id", "changed")
	id3, _ := f.e.tag.tag(n, 3)
	if id3 != id1 {
		t.Errorf("content change changed id: %q -> %q", id1, id3)
	}
}

func TestAnchor_KeepsExistingElementID(t *testing.T) {
	f := newFixture(t, page(`<div id="turn-9" data-message-author-role="user">x</div>`))
	if got := f.rec.last().Items[0].ID; got != "turn-9" {
		t.Errorf("ID: got %q, want turn-9", got)
	}
}

func TestScenarioA_EmptyState(t *testing.T) {
	f := newFixture(t, page(botMsg("only the assistant")))
	l := f.rec.last()
	if !l.Empty || len(l.Items) != 0 {
		t.Fatalf("list: got %+v, want empty state", l)
	}
}

func TestScenarioB_LongLabelsTruncated(t *testing.T) {
	long := strings.Repeat("lorem ipsum ", 10)
	f := newFixture(t, page(userMsg("m1", long), userMsg("m2", long), userMsg("m3", long)))
	items := f.rec.last().Items
	if len(items) != 3 {
		t.Fatalf("items: got %d, want 3", len(items))
	}
	for i, it := range items {
		if !strings.HasSuffix(it.Label, "…") {
			t.Errorf("item %d: missing ellipsis in %q", i, it.Label)
		}
		if n := len([]rune(it.Label)); n != 78 {
			t.Errorf("item %d: got %d runes, want 77 + ellipsis", i, n)
		}
	}
}

func TestScenarioC_BurstCoalesces(t *testing.T) {
	f := newFixture(t, page(userMsg("m1", "a"), userMsg("m2", "b")))
	before := len(f.rec.lists)

	for i := 0; i < 5; i++ {
		f.append(t, userMsg(fmt.Sprintf("n%d", i), "new question"))
		f.append(t, botMsg("streamed answer"))
	}
	f.v.Flush()
	if got := len(f.rec.lists); got != before {
		t.Fatalf("rendered before the frame tick: %d renders", got-before)
	}
	if f.e.detector.state != detectorPending {
		t.Fatalf("detector state: got %s, want pending", f.e.detector.state)
	}

	f.v.Advance(schedule.DefaultFrame)
	if got := len(f.rec.lists) - before; got != 1 {
		t.Fatalf("rebuilds after burst: got %d, want 1", got)
	}
	if got := len(f.rec.last().Items); got != 7 {
		t.Errorf("count: got %d, want 7", got)
	}
	if f.e.detector.state != detectorIdle {
		t.Errorf("detector state: got %s, want idle", f.e.detector.state)
	}
	if f.e.detector.notifications != 10 || f.e.detector.fired != 1 {
		t.Errorf("detector counters: notifications=%d fired=%d",
			f.e.detector.notifications, f.e.detector.fired)
	}
}

func TestDetector_IgnoresNotificationsWithoutAdds(t *testing.T) {
	f := newFixture(t, page(userMsg("m1", "a")))
	f.doc.Touch()
	f.v.Flush()
	if f.e.detector.state != detectorIdle {
		t.Fatal("notification without added nodes scheduled a rebuild")
	}
}

func TestPoller_CatchesMissedNotifications(t *testing.T) {
	v := schedule.NewVirtual(time.Time{})
	rec := &recorder{}
	drop := func(func()) {}
	doc := memdom.New(page(userMsg("m1", "a")), memdom.WithPoster(drop))
	e := New(Config{Document: doc, Scheduler: v, Renderer: rec, Logger: discard()})
	if err := e.Start(); err != nil {
		t.Fatal(err)
	}
	defer e.Stop()

	doc.AppendHTML(doc.Find("main"), userMsg("m2", "b"))
	v.Advance(1400 * time.Millisecond)
	if len(rec.lists) != 1 {
		t.Fatalf("renders before first poll: got %d, want 1", len(rec.lists))
	}
	v.Advance(100 * time.Millisecond)
	if len(rec.lists) != 2 || len(rec.last().Items) != 2 {
		t.Fatalf("poll did not pick up the new message: %d renders", len(rec.lists))
	}
	v.Advance(3 * time.Second)
	if len(rec.lists) != 2 {
		t.Errorf("idle polls rendered: got %d renders, want 2", len(rec.lists))
	}
}

func TestScenarioD_NavigationReboots(t *testing.T) {
	f := newFixture(t, page(userMsg("m1", "a"), userMsg("m2", "b")))

	// A pending rebuild from before the route change.
	f.append(t, userMsg("m3", "c"))
	f.v.Flush()
	if f.e.detector.state != detectorPending {
		t.Fatal("expected a pending rebuild")
	}
	staleGen := f.e.Generation()

	f.doc.Remove(f.doc.Find(`[data-message-id="m1"]`))
	f.doc.SetLocation("https://chatgpt.com/c/two")
	renders := len(f.rec.lists)

	// Reboot happens at the first navigation sample. Fire the frame callback
	// first by hand to prove it is inert once the generation moved.
	f.e.nav.sample()
	if f.e.Generation() != staleGen+1 {
		t.Fatalf("generation: got %d, want %d", f.e.Generation(), staleGen+1)
	}
	if f.rec.inits != 2 {
		t.Errorf("Init calls: got %d, want 2", f.rec.inits)
	}
	if got := len(f.rec.lists) - renders; got != 1 {
		t.Fatalf("renders on reboot: got %d, want 1", got)
	}
	if l := f.rec.last(); l.Generation != staleGen+1 || len(l.Items) != 2 {
		t.Errorf("rebooted list: got %+v", l)
	}
	if got := f.e.Stats().Count; got != 2 {
		t.Errorf("lastCount: got %d, want 2", got)
	}
	f.e.detector.fire(staleGen)

	before := len(f.rec.lists)
	f.v.Advance(time.Second)
	if got := len(f.rec.lists) - before; got != 0 {
		t.Errorf("pre-reboot timers rendered %d times after reboot", got)
	}
	if f.e.detector.fired != 0 {
		t.Errorf("stale frame callback fired %d times", f.e.detector.fired)
	}
}

func TestScenarioD_WatchersStayArmed(t *testing.T) {
	f := newFixture(t, page(userMsg("m1", "a")))
	f.doc.SetLocation("https://chatgpt.com/c/two")
	f.v.Advance(800 * time.Millisecond)
	if f.e.Generation() != 1 {
		t.Fatalf("generation after first change: got %d, want 1", f.e.Generation())
	}

	f.append(t, userMsg("m2", "b"))
	f.v.Advance(schedule.DefaultFrame)
	if got := len(f.rec.last().Items); got != 2 {
		t.Errorf("change detector after reboot: got %d items, want 2", got)
	}

	f.doc.SetLocation("https://chatgpt.com/c/three")
	f.v.Advance(800 * time.Millisecond)
	if f.e.Generation() != 2 {
		t.Errorf("generation after second change: got %d, want 2", f.e.Generation())
	}
	if f.doc.Observers() != 1 {
		t.Errorf("observers: got %d, want 1", f.doc.Observers())
	}
}

func TestLocate_FoundImmediately(t *testing.T) {
	f := newFixture(t, page(userMsg("m1", "a"), userMsg("m2", "b")))
	id := f.rec.last().Items[1].ID

	s := f.e.Select(id)
	if s.State() != StateFound {
		t.Fatalf("state: got %s, want found", s.State())
	}
	n := f.doc.Find(`[data-message-id="m2"]`)
	if sc := f.doc.Scrolled(); sc == nil || sc.Key() != n.Key() {
		t.Fatal("target not scrolled into view")
	}
	if !n.HasClass("cgpt-highlight") {
		t.Fatal("target not highlighted")
	}
	f.v.Advance(1499 * time.Millisecond)
	if !n.HasClass("cgpt-highlight") {
		t.Fatal("highlight cleared early")
	}
	f.v.Advance(time.Millisecond)
	if n.HasClass("cgpt-highlight") {
		t.Error("highlight not cleared after 1.5s")
	}
	if s.Resources() != 0 {
		t.Errorf("resources: got %d, want 0", s.Resources())
	}
}

func TestScenarioE_FoundAfterScrollSteps(t *testing.T) {
	f := newFixture(t, page(userMsg("m1", "a")))
	watchers := f.v.Pending()

	// Virtualised history: m0 only renders once the container scrolled
	// twice.
	f.doc.OnScroll(func(y int) {
		if y == 800 {
			f.doc.AppendHTML(f.main(), userMsg("m0", "old question"))
		}
	})

	s := f.e.Locate("cgpt-anchor-gone", "m0")
	if s.State() != StateSearching {
		t.Fatalf("state: got %s, want searching", s.State())
	}
	if s.Resources() != 3 {
		t.Errorf("resources while searching: got %d, want 3", s.Resources())
	}

	done := 0
	s.OnDone(func(*Search) { done++ })

	f.v.Advance(200 * time.Millisecond)
	if s.State() != StateSearching || s.Steps() != 1 {
		t.Fatalf("after one step: state=%s steps=%d", s.State(), s.Steps())
	}
	f.v.Advance(200 * time.Millisecond)
	if s.State() != StateFound {
		t.Fatalf("after two steps: got %s, want found", s.State())
	}
	if s.Elapsed() >= 6*time.Second {
		t.Errorf("elapsed: got %s, want under the deadline", s.Elapsed())
	}
	if done != 1 {
		t.Errorf("OnDone calls: got %d, want 1", done)
	}
	if s.Resources() != 0 {
		t.Errorf("resources after found: got %d, want 0", s.Resources())
	}
	if f.doc.Observers() != 1 {
		t.Errorf("observers: got %d, want 1 (engine only)", f.doc.Observers())
	}

	// Highlight timer remains until it clears; then only the watchers.
	f.v.Advance(2 * time.Second)
	if f.v.Pending() != watchers {
		t.Errorf("pending timers: got %d, want %d", f.v.Pending(), watchers)
	}
	if len(f.note.alerts) != 0 {
		t.Errorf("alerts: got %v, want none", f.note.alerts)
	}
}

func TestLocate_TimesOut(t *testing.T) {
	f := newFixture(t, page(userMsg("m1", "a")))
	watchers := f.v.Pending()

	s := f.e.Locate("cgpt-anchor-gone", "never")
	f.v.Advance(5999 * time.Millisecond)
	if s.State() != StateSearching {
		t.Fatalf("state before deadline: got %s", s.State())
	}
	f.v.Advance(time.Millisecond)
	if s.State() != StateTimedOut {
		t.Fatalf("state at deadline: got %s, want timed_out", s.State())
	}
	if len(f.note.alerts) != 1 || f.note.alerts[0] != MsgTimedOut {
		t.Errorf("alerts: got %v", f.note.alerts)
	}
	if s.Steps() != 29 && s.Steps() != 30 {
		t.Errorf("steps: got %d, want about 30", s.Steps())
	}
	if f.v.Pending() != watchers || f.doc.Observers() != 1 {
		t.Errorf("leaked resources: timers=%d observers=%d", f.v.Pending(), f.doc.Observers())
	}
	f.v.Advance(10 * time.Second)
	if len(f.note.alerts) != 1 {
		t.Errorf("alerts after more time: got %d, want 1", len(f.note.alerts))
	}
}

func TestLocate_ResolvesOnce(t *testing.T) {
	f := newFixture(t, page(userMsg("m1", "a")))
	s := f.e.Locate("gone", "m9")
	n := f.doc.Find(`[data-message-id="m1"]`)
	if !s.resolve(StateFound, n) {
		t.Fatal("first resolve: got false")
	}
	if s.resolve(StateTimedOut, nil) {
		t.Fatal("second resolve: got true")
	}
	if s.State() != StateFound {
		t.Errorf("state: got %s, want found", s.State())
	}
	f.v.Advance(10 * time.Second)
	if len(f.note.alerts) != 0 {
		t.Errorf("alerts after resolution: %v", f.note.alerts)
	}
}

func TestLocate_StaleWithoutSecondary(t *testing.T) {
	f := newFixture(t, page(`<div data-message-author-role="user">no message id</div>`))
	id := f.rec.last().Items[0].ID
	f.doc.Remove(f.doc.Find(`[data-message-author-role="user"]`))

	s := f.e.Select(id)
	if s.State() != StateTimedOut {
		t.Fatalf("state: got %s, want timed_out", s.State())
	}
	if len(f.note.alerts) != 1 || f.note.alerts[0] != MsgStale {
		t.Errorf("alerts: got %v", f.note.alerts)
	}
}

func TestLocate_StaleFallsBackToSecondary(t *testing.T) {
	f := newFixture(t, page(userMsg("m1", "a")))
	id := f.rec.last().Items[0].ID

	// The page re-creates the element: new instance, same message id.
	f.doc.Remove(f.doc.Find(`[data-message-id="m1"]`))
	f.append(t, userMsg("m1", "a"))

	s := f.e.Select(id)
	if s.State() != StateFound {
		t.Fatalf("state: got %s, want found", s.State())
	}
}

func TestReboot_ClearsHighlight(t *testing.T) {
	f := newFixture(t, page(userMsg("m1", "a")))
	f.e.Select(f.rec.last().Items[0].ID)
	n := f.doc.Find(`[data-message-id="m1"]`)
	if !n.HasClass("cgpt-highlight") {
		t.Fatal("not highlighted")
	}
	f.doc.SetLocation("https://chatgpt.com/c/other")
	f.v.Advance(800 * time.Millisecond)
	if n.HasClass("cgpt-highlight") {
		t.Error("highlight survived the reboot")
	}
}

func TestReboot_CancelsRunningSearch(t *testing.T) {
	f := newFixture(t, page(userMsg("m1", "a")))
	s := f.e.Locate("cgpt-anchor-gone", "never")
	f.v.Advance(400 * time.Millisecond)
	if s.Steps() != 2 {
		t.Fatalf("steps before navigation: got %d, want 2", s.Steps())
	}

	f.doc.SetLocation("https://chatgpt.com/c/two")
	f.v.Advance(400 * time.Millisecond)
	if f.e.Generation() != 1 {
		t.Fatalf("generation: got %d, want 1", f.e.Generation())
	}
	if s.State() != StateCancelled {
		t.Fatalf("state after reboot: got %s, want cancelled", s.State())
	}
	y, steps := f.doc.ScrollY(), s.Steps()

	f.v.Advance(10 * time.Second)
	if f.doc.ScrollY() != y || s.Steps() != steps {
		t.Errorf("search kept scrolling after reboot: y %d->%d, steps %d->%d", y, f.doc.ScrollY(), steps, s.Steps())
	}
	if len(f.note.alerts) != 0 {
		t.Errorf("alerts: got %v, want none", f.note.alerts)
	}
	if s.Resources() != 0 || f.e.Stats().Searches != 0 {
		t.Errorf("leaked: resources=%d searches=%d", s.Resources(), f.e.Stats().Searches)
	}
}

func TestStop_ReleasesEverything(t *testing.T) {
	f := newFixture(t, page(userMsg("m1", "a")))
	s := f.e.Locate("gone", "never")
	f.append(t, userMsg("m2", "b"))
	f.v.Flush()

	f.e.Stop()
	if s.State() != StateCancelled {
		t.Errorf("search state: got %s, want cancelled", s.State())
	}
	if f.v.Pending() != 0 {
		t.Errorf("pending timers: got %d, want 0", f.v.Pending())
	}
	if f.doc.Observers() != 0 {
		t.Errorf("observers: got %d, want 0", f.doc.Observers())
	}
	renders := len(f.rec.lists)
	f.v.Advance(10 * time.Second)
	if len(f.rec.lists) != renders {
		t.Error("rendered after Stop")
	}
	if len(f.note.alerts) != 0 {
		t.Errorf("alerts after Stop: %v", f.note.alerts)
	}
	if err := f.e.Start(); err != ErrStopped {
		t.Errorf("Start after Stop: got %v, want ErrStopped", err)
	}
}

func TestSetPredicates_RebootsWithNewSelectors(t *testing.T) {
	f := newFixture(t, page(userMsg("m1", "a"), botMsg("x"), botMsg("y")))
	sels, err := dom.ParseSelectors([]string{`[data-message-author-role="assistant"]`})
	if err != nil {
		t.Fatal(err)
	}
	f.e.SetPredicates(sels)
	if f.e.Generation() != 1 {
		t.Errorf("generation: got %d, want 1", f.e.Generation())
	}
	l := f.rec.last()
	if len(l.Items) != 2 || l.Items[0].Label != "x" {
		t.Errorf("list after predicate swap: got %+v", l.Items)
	}

	f.e.SetPredicates(nil)
	if f.e.Generation() != 1 {
		t.Errorf("empty predicate set rebooted: generation %d", f.e.Generation())
	}
}

func TestLogNotifier_PromptLogsText(t *testing.T) {
	var buf strings.Builder
	n := logNotifier{log: slog.New(slog.NewTextHandler(&buf, nil))}
	n.Prompt("copy this", "# Questions\n\n1. a")
	if !strings.Contains(buf.String(), `text="# Questions\n\n1. a"`) {
		t.Errorf("log line: got %q", buf.String())
	}
}

type captureExporter struct{ items []Item }

func (c *captureExporter) Export(_ context.Context, items []Item, _ BodyFunc) error {
	c.items = items
	return nil
}

func TestExport_RescansEqualCountChange(t *testing.T) {
	v := schedule.NewVirtual(time.Time{})
	doc := memdom.New(page(userMsg("m1", "a"), userMsg("m2", "b")), memdom.WithPoster(v.Post))
	exp := &captureExporter{}
	rec := &recorder{}
	e := New(Config{Document: doc, Scheduler: v, Renderer: rec, Notifier: &alerts{}, Exporter: exp, Logger: discard()})
	if err := e.Start(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(e.Stop)

	doc.Remove(doc.Find(`[data-message-id="m1"]`))
	if _, err := doc.AppendHTML(doc.Find("main"), userMsg("m3", "c")); err != nil {
		t.Fatal(err)
	}
	v.Flush()
	v.Advance(schedule.DefaultFrame)
	if got := rec.last().Items[0].Label; got != "a" {
		t.Fatalf("equal-count change rendered: first label %q", got)
	}

	if err := e.Export(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(exp.items) != 2 || exp.items[0].Label != "b" || exp.items[1].Label != "c" {
		t.Errorf("exported: got %+v, want labels b, c", exp.items)
	}
	if got := rec.last().Items[0].Label; got != "a" {
		t.Errorf("export touched the rendered list: first label %q", got)
	}
}
