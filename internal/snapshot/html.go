package snapshot

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"

	"github.com/marksync/marksync/internal/tree"
)

// ReadHTML parses a Netscape bookmark file. The outermost <DL> becomes the
// returned root folder; each <H3> becomes a folder holding the entries of the
// <DL> that follows it, and each <A HREF> becomes a bookmark. Ids are assigned
// in document order starting at 1.
func ReadHTML(r io.Reader) (*tree.Folder, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse bookmark HTML: %w", err)
	}

	root := &tree.Folder{
		Base:  tree.Base{ID: tree.RootID, ParentID: tree.NoParent},
		Title: tree.RootTitle,
	}
	var (
		next    tree.ID
		stack   []*tree.Folder
		pending *tree.Folder
	)
	current := func() *tree.Folder {
		if len(stack) == 0 {
			return root
		}
		return stack[len(stack)-1]
	}

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		pushed := false
		if n.Type == html.ElementNode {
			switch n.Data {
			case "h3":
				parent := current()
				next++
				pending = &tree.Folder{
					Base:  tree.Base{ID: next, ParentID: parent.ID},
					Title: strings.TrimSpace(textOf(n)),
				}
				parent.Append(pending)
				return
			case "a":
				pending = nil
				href := attr(n, "href")
				if href == "" {
					return
				}
				parent := current()
				next++
				parent.Append(&tree.Bookmark{
					Base:  tree.Base{ID: next, ParentID: parent.ID},
					URL:   href,
					Title: strings.TrimSpace(textOf(n)),
				})
				return
			case "dl":
				// A <DL> directly after an <H3> holds that folder's entries.
				if pending != nil {
					stack = append(stack, pending)
					pending = nil
					pushed = true
				}
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}

		if pushed {
			stack = stack[:len(stack)-1]
		}
	}
	walk(doc)

	return root, nil
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func textOf(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

// WriteHTML writes f as a Netscape bookmark file. Children are written in
// their tree order.
func WriteHTML(w io.Writer, f *tree.Folder) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, "<!DOCTYPE NETSCAPE-Bookmark-file-1>")
	fmt.Fprintln(bw, `<META HTTP-EQUIV="Content-Type" CONTENT="text/html; charset=UTF-8">`)
	fmt.Fprintln(bw, "<TITLE>Bookmarks</TITLE>")
	fmt.Fprintf(bw, "<H1>%s</H1>\n", html.EscapeString(f.Title))
	writeList(bw, f, 0)
	return bw.Flush()
}

func writeList(w io.Writer, f *tree.Folder, depth int) {
	indent := strings.Repeat("    ", depth)
	fmt.Fprintf(w, "%s<DL><p>\n", indent)
	for _, child := range f.Children {
		switch n := child.(type) {
		case *tree.Bookmark:
			fmt.Fprintf(w, "%s    <DT><A HREF=\"%s\">%s</A>\n",
				indent, html.EscapeString(n.URL), html.EscapeString(n.Title))
		case *tree.Folder:
			fmt.Fprintf(w, "%s    <DT><H3>%s</H3>\n", indent, html.EscapeString(n.Title))
			writeList(w, n, depth+1)
		}
	}
	fmt.Fprintf(w, "%s</DL><p>\n", indent)
}
