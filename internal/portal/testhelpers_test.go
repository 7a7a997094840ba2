package portal

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/osulel12/itc-parser/internal/form"
	"github.com/osulel12/itc-parser/internal/ledger"
	"github.com/osulel12/itc-parser/internal/model"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

// fakeForm is a scriptable in-memory Controller. Reads come from maps keyed
// by selector; failures are injected per operation, either once (queue) or
// persistently.
type fakeForm struct {
	mu sync.Mutex

	values  map[string]string
	texts   map[string]string
	textAll map[string][]string
	attrs   map[string]string   // sel + "|" + name
	attrAll map[string][]string // sel + "|" + name

	screenshotErr error

	errOnce   map[string][]error
	errAlways map[string]error

	onClick  map[string]func()
	selected map[string]string
	typed    map[string]string
	clicks   []string
}

func newFakeForm() *fakeForm {
	return &fakeForm{
		values:    map[string]string{},
		texts:     map[string]string{},
		textAll:   map[string][]string{},
		attrs:     map[string]string{},
		attrAll:   map[string][]string{},
		errOnce:   map[string][]error{},
		errAlways: map[string]error{},
		onClick:   map[string]func(){},
		selected:  map[string]string{},
		typed:     map[string]string{},
	}
}

func (f *fakeForm) failOnce(op, sel string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := op + ":" + sel
	f.errOnce[key] = append(f.errOnce[key], err)
}

func (f *fakeForm) failAlways(op, sel string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errAlways[op+":"+sel] = err
}

func (f *fakeForm) popErr(op, sel string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := op + ":" + sel
	if q := f.errOnce[key]; len(q) > 0 {
		err := q[0]
		f.errOnce[key] = q[1:]
		return err
	}
	return f.errAlways[key]
}

func (f *fakeForm) clickCount(sel string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.clicks {
		if c == sel {
			n++
		}
	}
	return n
}

func (f *fakeForm) Navigate(ctx context.Context, url string) error {
	return f.popErr("navigate", url)
}

func (f *fakeForm) Click(ctx context.Context, sel string, wait time.Duration) error {
	if err := f.popErr("click", sel); err != nil {
		return err
	}
	f.mu.Lock()
	f.clicks = append(f.clicks, sel)
	fn := f.onClick[sel]
	f.mu.Unlock()
	if fn != nil {
		fn()
	}
	return nil
}

func (f *fakeForm) SendKeys(ctx context.Context, sel, text string, wait time.Duration) error {
	if err := f.popErr("sendkeys", sel); err != nil {
		return err
	}
	f.mu.Lock()
	f.typed[sel] = text
	f.mu.Unlock()
	return nil
}

func (f *fakeForm) SelectByText(ctx context.Context, sel, optionText string, wait time.Duration) error {
	if err := f.popErr("select", sel); err != nil {
		return err
	}
	f.mu.Lock()
	f.selected[sel] = optionText
	f.mu.Unlock()
	return nil
}

func (f *fakeForm) ClickByText(ctx context.Context, sel, text string, wait time.Duration) error {
	return f.popErr("clickbytext", sel)
}

func (f *fakeForm) Value(ctx context.Context, sel string, wait time.Duration) (string, error) {
	if err := f.popErr("value", sel); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.values[sel]
	if !ok {
		return "", form.ErrNotFound
	}
	return v, nil
}

func (f *fakeForm) Attribute(ctx context.Context, sel, name string, wait time.Duration) (string, error) {
	if err := f.popErr("attribute", sel); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.attrs[sel+"|"+name]
	if !ok {
		return "", form.ErrNotFound
	}
	return v, nil
}

func (f *fakeForm) Text(ctx context.Context, sel string, wait time.Duration) (string, error) {
	if err := f.popErr("text", sel); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.texts[sel]
	if !ok {
		return "", form.ErrWaitTimeout
	}
	return v, nil
}

func (f *fakeForm) TextAll(ctx context.Context, sel string, wait time.Duration) ([]string, error) {
	if err := f.popErr("textall", sel); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.textAll[sel], nil
}

func (f *fakeForm) AttributeAll(ctx context.Context, sel, name string, wait time.Duration) ([]string, error) {
	if err := f.popErr("attrall", sel); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.attrAll[sel+"|"+name], nil
}

func (f *fakeForm) Screenshot(ctx context.Context, sel string, wait time.Duration) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.screenshotErr != nil {
		return nil, f.screenshotErr
	}
	return []byte("png-bytes"), nil
}

func (f *fakeForm) Close() error { return nil }

// memStore is an in-memory checkpoint store for a single session.
type memStore struct {
	mu   sync.Mutex
	sess model.Session
}

func (m *memStore) RegisterSession(ctx context.Context, chatID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sess.ChatID == "" {
		m.sess.ChatID = chatID
	}
	return nil
}

func (m *memStore) GetSession(ctx context.Context, chatID string) (*model.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess := m.sess
	return &sess, nil
}

func (m *memStore) ResumePoint(ctx context.Context, chatID string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sess.CurrentPartner, m.sess.ResumeFlag, nil
}

func (m *memStore) SetCurrentPartner(ctx context.Context, chatID, partner string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sess.CurrentPartner = partner
	return nil
}

func (m *memStore) MarkResume(ctx context.Context, chatID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sess.ResumeFlag = true
	return nil
}

func (m *memStore) ClearResumeFlag(ctx context.Context, chatID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sess.ResumeFlag = false
	return nil
}

func (m *memStore) CaptchaState(ctx context.Context, chatID string) (bool, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sess.CaptchaValid, m.sess.CaptchaText, nil
}

func (m *memStore) SetCaptchaAnswer(ctx context.Context, chatID, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sess.CaptchaText = text
	m.sess.CaptchaValid = true
	return nil
}

func (m *memStore) InvalidateCaptcha(ctx context.Context, chatID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sess.CaptchaValid = false
	return nil
}

func (m *memStore) SetCaptchaMessageID(ctx context.Context, chatID, messageID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sess.CaptchaMessageID = messageID
	return nil
}

func (m *memStore) Migrate(ctx context.Context) error { return nil }
func (m *memStore) Close() error                      { return nil }

// fakeNotify records relayed messages.
type fakeNotify struct {
	mu     sync.Mutex
	images [][]byte
	texts  []string
}

func (n *fakeNotify) SendImage(ctx context.Context, image []byte, caption string) (string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.images = append(n.images, image)
	return "msg-1", nil
}

func (n *fakeNotify) SendText(ctx context.Context, text string, formatted bool) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.texts = append(n.texts, text)
	return nil
}

func testWaits() Waits {
	return Waits{
		Auth:           time.Millisecond,
		Nav:            time.Millisecond,
		Check:          time.Millisecond,
		Captcha:        time.Millisecond,
		DownloadBtn:    time.Millisecond,
		CaptchaGrace:   time.Millisecond,
		CaptchaPoll:    time.Millisecond,
		DownloadWindow: 100 * time.Millisecond,
		DownloadTick:   time.Millisecond,
		StalePause:     time.Millisecond,
	}
}

// fixture wires an engine against the fakes with a happy-path page state for
// reporter Austria: no captcha, all options already correct, partner list
// World and Germany with non-zero totals.
type fixture struct {
	t       *testing.T
	form    *fakeForm
	store   *memStore
	notify  *fakeNotify
	results *ledger.Ledger
	mirror  *ledger.Ledger
	engine  *Engine
	root    string
	sel     Selectors
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	root := t.TempDir()
	sel := DefaultSelectors()

	f := newFakeForm()
	f.screenshotErr = form.ErrWaitTimeout
	f.failAlways("click", sel.NewsCheckbox, form.ErrWaitTimeout)
	f.failAlways("click", sel.RestrictedClose, form.ErrWaitTimeout)

	f.values[sel.Reporter] = "Austria"
	f.values[sel.TradeType] = "I"
	f.values[sel.OutputType] = "TSY"
	f.values[sel.OutputOption] = "ByProduct"
	f.values[sel.ClusterLevel] = "6"
	f.values[sel.Indicator] = "V"
	f.values[sel.Currency] = "USD"
	f.values[sel.PageSize] = "12"

	f.textAll[sel.PartnerOptions] = []string{"All", "World", "Germany"}
	f.attrs[sel.WorldColspan+"|colspan"] = "12"
	f.attrs[sel.BilateralColspan+"|colspan"] = "2"
	f.textAll[sel.TotalsCells] = []string{"", "", "", "5", "3", "-", "7"}

	st := &memStore{}
	require.NoError(t, st.RegisterSession(context.Background(), "42"))
	n := &fakeNotify{}

	results := ledger.New(filepath.Join(root, "Imports_res.json"))
	mirror := ledger.New(filepath.Join(root, "json_mirror_data.json"))

	cfg := Config{
		URL:          "https://example.test/trade",
		Username:     "user@example.test",
		Password:     "secret",
		ChatID:       "42",
		DownloadRoot: root,
		FilePattern:  "Trade_Map_-_Bilateral_trade_between_%s_and_%s.txt",
		Selectors:    sel,
	}

	eng := New(f, st, n, results, mirror, cfg, WithWaits(testWaits()))
	return &fixture{
		t: t, form: f, store: st, notify: n,
		results: results, mirror: mirror, engine: eng, root: root, sel: sel,
	}
}

func (fx *fixture) job() model.Job {
	return model.Job{
		Reporter: "Austria",
		Flow:     model.DirectionImports,
		Measure:  model.MeasureValues,
		Cluster:  model.ClusterSixDigit,
	}
}

// downloadPath is where a finished download for the given partner lands.
func (fx *fixture) downloadPath(job model.Job, partner string) string {
	name := "Trade_Map_-_Bilateral_trade_between_" +
		model.SanitizeName(job.Reporter) + "_and_" + model.SanitizeName(partner) + ".txt"
	return filepath.Join(fx.root, job.FolderName(), name)
}

// armDownloadButton makes the download click drop the file for whichever
// partner is currently picked.
func (fx *fixture) armDownloadButton(job model.Job) {
	fx.form.onClick[fx.sel.DownloadButton] = func() {
		fx.form.mu.Lock()
		partner := fx.form.selected[fx.sel.Partner]
		fx.form.mu.Unlock()
		writeFile(fx.t, fx.downloadPath(job, partner))
	}
}

func writeFile(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("data"), 0o644))
}
