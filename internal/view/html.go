package view

import (
	g "maragu.dev/gomponents"
	hx "maragu.dev/gomponents-htmx"
	. "maragu.dev/gomponents/html"
)

const (
	htmxSrc   = "https://unpkg.com/htmx.org@2.0.4"
	htmxWSSrc = "https://unpkg.com/htmx-ext-ws@2.0.2"
)

const pageStyle = `
body{font-family:system-ui,sans-serif;margin:0;display:flex;flex-direction:column;height:100vh;background:#f3f4f6}
header{display:flex;justify-content:space-between;align-items:center;padding:.75rem 1rem;background:#4338ca;color:#fff}
#main{flex:1;overflow-y:auto;padding:1rem;display:flex;flex-direction:column;gap:.5rem}
.status{margin:auto;text-align:center;color:#6b7280}
.error{color:#b91c1c}
.msg{max-width:70%;padding:.5rem .75rem;border-radius:.75rem;background:#fff;align-self:flex-start}
.msg.right{align-self:flex-end;background:#e0e7ff}
.msg.pending{opacity:.6}
.meta{font-size:.75rem;color:#6b7280;display:flex;gap:.5rem}
#notice:not(:empty){padding:.5rem 1rem;background:#fef3c7;color:#92400e}
#composer{display:none;gap:.5rem;padding:.75rem 1rem;background:#fff}
body:has(#main[data-mode="ready"]) #composer{display:flex}
#message-input{flex:1;padding:.5rem}
`

const scrollScript = `
document.body.addEventListener("htmx:wsAfterMessage", function () {
  var main = document.getElementById("main");
  if (!main) return;
  var target = main.dataset.scrollTo && document.getElementById(main.dataset.scrollTo);
  if (target) target.scrollIntoView({block: "end"});
});
`

// Page is the full document. The body connects to /ws and receives
// Fragments for every screen change.
func Page(s Screen) g.Node {
	return Doctype(
		HTML(
			Lang("en"),
			Head(
				Meta(Charset("utf-8")),
				Meta(Name("viewport"), Content("width=device-width, initial-scale=1")),
				TitleEl(g.Text(s.Title)),
				StyleEl(g.Raw(pageStyle)),
				Script(Src(htmxSrc)),
				Script(Src(htmxWSSrc)),
			),
			Body(
				hx.Ext("ws"),
				g.Attr("ws-connect", "/ws"),
				Header(
					H1(g.Text(s.Title)),
					Identity(s),
				),
				Notice(s),
				MainPanel(s),
				composerForm(s),
				Script(g.Raw(scrollScript)),
			),
		),
	)
}

// Fragments are the out-of-band swaps pushed over the websocket.
func Fragments(s Screen) g.Node {
	return g.Group{
		MainPanel(s, hx.SwapOOB("true")),
		Notice(s, hx.SwapOOB("true")),
		Identity(s, hx.SwapOOB("true")),
	}
}

// MainPanel shows exactly one of the loading, error or message views.
func MainPanel(s Screen, attrs ...g.Node) g.Node {
	return Main(
		ID("main"),
		g.Group(attrs),
		Data("mode", string(s.Mode)),
		g.If(s.ScrollTo != "", Data("scroll-to", rowDOMID(s.ScrollTo))),
		g.If(s.Mode == ModeLoading, P(Class("status"), g.Text(LoadingText))),
		g.If(s.Mode == ModeError, Div(
			Class("status error"),
			H2(g.Text(ErrorHeading)),
			P(g.Text(s.Error)),
		)),
		g.If(s.Mode == ModeReady && s.SignedOut, P(Class("status"), g.Text(SignedOutHint))),
		g.If(s.Mode == ModeReady && s.Empty, P(Class("status"), g.Text(EmptyHint))),
		g.If(s.Mode == ModeReady, g.Map(s.Rows, messageRow)),
	)
}

func messageRow(r Row) g.Node {
	return Div(
		ID(rowDOMID(r.ID)),
		Class(rowClass(r)),
		Div(
			Class("meta"),
			Span(g.Text(r.Label)),
			Span(g.Text(r.Time)),
		),
		Div(g.Text(r.Text)),
	)
}

func rowClass(r Row) string {
	if r.Pending {
		return "msg pending " + string(r.Align)
	}
	return "msg " + string(r.Align)
}

func rowDOMID(id string) string {
	return "msg-" + id
}

// Notice is the transient non-fatal error banner.
func Notice(s Screen, attrs ...g.Node) g.Node {
	return Div(ID("notice"), Role("status"), g.Group(attrs), g.If(s.Notice != "", g.Text(s.Notice)))
}

// Identity shows the display name and the rename form.
func Identity(s Screen, attrs ...g.Node) g.Node {
	return Div(
		ID("identity"),
		g.Group(attrs),
		Form(
			hx.Post("/name"),
			hx.Target("#identity"),
			hx.Swap("outerHTML"),
			Input(Type("text"), Name("name"), Value(s.DisplayName), AutoComplete("off")),
			Button(Type("submit"), g.Text("Rename")),
		),
		g.If(s.SelfID != "", Small(g.Textf("id: %s", s.SelfID))),
		g.If(s.SelfID != "", sessionButton("/signout", "Sign out")),
		g.If(s.SignedOut, sessionButton("/signin", "Sign in")),
	)
}

// sessionButton posts to path; the new screen arrives over the websocket.
func sessionButton(path, label string) g.Node {
	return Button(Type("button"), hx.Post(path), hx.Swap("none"), g.Text(label))
}

// MessageInput is the composer text field, returned after each submit.
func MessageInput(value string) g.Node {
	return Input(
		ID("message-input"),
		Type("text"),
		Name("text"),
		Value(value),
		Placeholder("Type a message"),
		AutoComplete("off"),
		AutoFocus(),
	)
}

func composerForm(s Screen) g.Node {
	return Form(
		ID("composer"),
		hx.Post("/messages"),
		hx.Target("#message-input"),
		hx.Swap("outerHTML"),
		MessageInput(s.Input),
		Button(Type("submit"), g.Text("Send")),
	)
}
