package headless

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/dop251/goja"
)

// Entry is one console call made by the document's scripts.
type Entry struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

// Report describes one executed document.
type Report struct {
	Generation uint64        `json:"generation"`
	Title      string        `json:"title"`
	Text       string        `json:"text"`
	Styles     []string      `json:"styles"`
	Console    []Entry       `json:"console"`
	Errors     []string      `json:"errors"`
	Duration   time.Duration `json:"duration"`
}

// Logged returns the messages logged at level.
func (r Report) Logged(level string) []string {
	var out []string
	for _, e := range r.Console {
		if e.Level == level {
			out = append(out, e.Message)
		}
	}
	return out
}

type page struct {
	doc     *goquery.Document
	vm      *goja.Runtime
	mu      sync.Mutex
	console []Entry
}

// Run parses document, executes its inline scripts in order in a fresh
// runtime and reports the resulting page. Script failures are recorded in
// Errors; only a parse failure or cancellation returns an error.
func Run(ctx context.Context, document string, timeout time.Duration) (Report, error) {
	start := time.Now()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(document))
	if err != nil {
		return Report{}, fmt.Errorf("parsing document: %w", err)
	}

	p := &page{doc: doc, vm: goja.New()}
	p.vm.SetMaxCallStackSize(1024)
	p.setupGlobals()

	var report Report
	doc.Find("style").Each(func(_ int, s *goquery.Selection) {
		report.Styles = append(report.Styles, s.Text())
	})

	scripts := doc.Find("script")
	for i := range scripts.Nodes {
		s := scripts.Eq(i)
		if src, ok := s.Attr("src"); ok {
			p.log("warn", "external script not loaded: "+src)
			continue
		}
		if err := p.exec(ctx, s.Text(), timeout); err != nil {
			report.Errors = append(report.Errors, err.Error())
		}
		if err := ctx.Err(); err != nil {
			return Report{}, err
		}
	}

	report.Title = strings.TrimSpace(doc.Find("title").First().Text())
	body := doc.Find("body").Clone()
	body.Find("script, style").Remove()
	report.Text = strings.Join(strings.Fields(body.Text()), " ")

	p.mu.Lock()
	report.Console = append([]Entry(nil), p.console...)
	p.mu.Unlock()
	report.Duration = time.Since(start)
	return report, nil
}

func (p *page) exec(ctx context.Context, script string, timeout time.Duration) error {
	var timer <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		timer = t.C
	}

	done := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		select {
		case <-timer:
			p.vm.Interrupt("execution timeout exceeded")
		case <-ctx.Done():
			p.vm.Interrupt("context cancelled")
		case <-done:
		}
	}()

	_, err := p.vm.RunString(script)
	close(done)
	<-stopped
	// The watcher has exited, so no interrupt can land after the clear.
	p.vm.ClearInterrupt()
	return err
}

func (p *page) log(level, msg string) {
	p.mu.Lock()
	p.console = append(p.console, Entry{Level: level, Message: msg})
	p.mu.Unlock()
}

func (p *page) setupGlobals() {
	vm := p.vm
	for _, name := range []string{"require", "process", "module", "exports"} {
		vm.Set(name, goja.Undefined())
	}

	console := vm.NewObject()
	for _, level := range []string{"log", "info", "warn", "error", "debug"} {
		console.Set(level, p.consoleFunc(level))
	}
	vm.Set("console", console)

	noop := func(goja.FunctionCall) goja.Value { return goja.Undefined() }
	for _, name := range []string{"setTimeout", "setInterval", "clearTimeout", "clearInterval", "alert", "addEventListener"} {
		vm.Set(name, noop)
	}
	vm.Set("window", vm.GlobalObject())

	document := vm.NewObject()
	document.Set("querySelector", func(call goja.FunctionCall) goja.Value {
		sel := p.doc.Find(call.Argument(0).String()).First()
		if sel.Length() == 0 {
			return goja.Null()
		}
		return p.element(sel)
	})
	document.Set("getElementById", func(call goja.FunctionCall) goja.Value {
		sel := p.doc.Find("[id=\"" + call.Argument(0).String() + "\"]").First()
		if sel.Length() == 0 {
			return goja.Null()
		}
		return p.element(sel)
	})
	document.Set("querySelectorAll", func(call goja.FunctionCall) goja.Value {
		var out []interface{}
		p.doc.Find(call.Argument(0).String()).Each(func(_ int, s *goquery.Selection) {
			out = append(out, p.element(s))
		})
		return vm.NewArray(out...)
	})
	document.Set("addEventListener", noop)
	document.Set("body", p.element(p.doc.Find("body").First()))
	p.accessor(document, "title",
		func() string { return p.doc.Find("title").First().Text() },
		func(v string) {
			if t := p.doc.Find("title"); t.Length() > 0 {
				t.First().SetText(v)
			} else {
				p.doc.Find("head").AppendHtml("<title></title>").Find("title").SetText(v)
			}
		})
	vm.Set("document", document)
}

func (p *page) consoleFunc(level string) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		parts := make([]string, len(call.Arguments))
		for i, arg := range call.Arguments {
			parts[i] = arg.String()
		}
		p.log(level, strings.Join(parts, " "))
		return goja.Undefined()
	}
}

// element exposes a minimal live view of sel to scripts.
func (p *page) element(sel *goquery.Selection) goja.Value {
	obj := p.vm.NewObject()
	if len(sel.Nodes) > 0 {
		obj.Set("tagName", strings.ToUpper(goquery.NodeName(sel)))
	}
	obj.Set("id", sel.AttrOr("id", ""))
	obj.Set("getAttribute", func(name string) goja.Value {
		v, ok := sel.Attr(name)
		if !ok {
			return goja.Null()
		}
		return p.vm.ToValue(v)
	})
	obj.Set("setAttribute", func(name, value string) { sel.SetAttr(name, value) })
	obj.Set("addEventListener", func(goja.FunctionCall) goja.Value { return goja.Undefined() })
	obj.Set("appendChild", func(goja.FunctionCall) goja.Value { return goja.Undefined() })
	p.accessor(obj, "textContent", sel.Text, func(v string) { sel.SetText(v) })
	p.accessor(obj, "innerHTML",
		func() string {
			h, _ := sel.Html()
			return h
		},
		func(v string) { sel.SetHtml(v) })
	return obj
}

func (p *page) accessor(obj *goja.Object, name string, get func() string, set func(string)) {
	getter := p.vm.ToValue(func(goja.FunctionCall) goja.Value { return p.vm.ToValue(get()) })
	setter := p.vm.ToValue(func(call goja.FunctionCall) goja.Value {
		set(call.Argument(0).String())
		return goja.Undefined()
	})
	obj.DefineAccessorProperty(name, getter, setter, goja.FLAG_TRUE, goja.FLAG_TRUE)
}
