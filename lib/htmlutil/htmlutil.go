package htmlutil

import (
	"bytes"
	"strings"
	"unicode"

	"golang.org/x/net/html"
)

// GetText returns the concatenated text content of a node and all of
// its descendants.
func GetText(node *html.Node) string {
	var buffer bytes.Buffer
	getTextRecursive(node, &buffer)
	return buffer.String()
}

func getTextRecursive(node *html.Node, buffer *bytes.Buffer) {
	if node == nil {
		return
	}
	if node.Type == html.TextNode {
		buffer.WriteString(node.Data)
		return
	}
	child := node.FirstChild
	for child != nil {
		getTextRecursive(child, buffer)
		child = child.NextSibling
	}
}

// RenderedText approximates the browser's innerText: <br> becomes a
// newline and block-level children are separated by newlines. Plain
// GetText would glue the lines of a multi-line table cell together.
func RenderedText(node *html.Node) string {
	var buffer bytes.Buffer
	renderedTextRecursive(node, &buffer)
	return strings.Trim(removeNonPrintable(buffer.String()), " \n\t")
}

func renderedTextRecursive(node *html.Node, buffer *bytes.Buffer) {
	if node == nil {
		return
	}
	if node.Type == html.TextNode {
		buffer.WriteString(node.Data)
		return
	}
	if node.Type == html.ElementNode {
		switch node.Data {
		case "br":
			buffer.WriteString("\n")
			return
		case "p", "div", "tr", "li":
			if buffer.Len() > 0 && !bytes.HasSuffix(buffer.Bytes(), []byte("\n")) {
				buffer.WriteString("\n")
			}
		}
	}
	child := node.FirstChild
	for child != nil {
		renderedTextRecursive(child, buffer)
		child = child.NextSibling
	}
}

func removeNonPrintable(s string) string {
	newStr := strings.Builder{}
	for _, c := range s {
		if unicode.IsPrint(c) || c == '\n' {
			newStr.WriteRune(c)
		}
	}
	return newStr.String()
}
