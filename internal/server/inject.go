package server

import (
	"bytes"

	"golang.org/x/net/html"
)

// reloadScript is the live-reload client injected into served HTML. It
// holds the reload endpoint open and refetches the page on any signal.
const reloadScript = `(function() {
  var proto = location.protocol === "https:" ? "wss://" : "ws://";
  var sock = new WebSocket(proto + location.host + "/ws");
  sock.onmessage = function() { location.reload(); };
})();`

// injectReloadScript parses an HTML document and appends the reload
// client as the last child of <body>. Input that cannot be parsed, or
// that has no body element, is extended with a trailing script block
// instead, so every HTML response carries the client.
func injectReloadScript(doc []byte) []byte {
	root, err := html.Parse(bytes.NewReader(doc))
	if err != nil {
		return appendScript(doc)
	}

	body := findElement(root, "body")
	if body == nil {
		return appendScript(doc)
	}

	script := &html.Node{Type: html.ElementNode, Data: "script"}
	script.AppendChild(&html.Node{Type: html.TextNode, Data: reloadScript})
	body.AppendChild(script)

	var buf bytes.Buffer
	if err := html.Render(&buf, root); err != nil {
		return appendScript(doc)
	}
	return buf.Bytes()
}

func findElement(n *html.Node, name string) *html.Node {
	if n.Type == html.ElementNode && n.Data == name {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, name); found != nil {
			return found
		}
	}
	return nil
}

func appendScript(doc []byte) []byte {
	out := make([]byte, 0, len(doc)+len(reloadScript)+20)
	out = append(out, doc...)
	out = append(out, "<script>"...)
	out = append(out, reloadScript...)
	out = append(out, "</script>"...)
	return out
}
