package tui

import (
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/Zuo-Peng/chatcap/internal/document"
	"github.com/Zuo-Peng/chatcap/internal/render"
	"github.com/Zuo-Peng/chatcap/internal/search"
)

// previewRenderedMsg is sent when an async preview render completes.
type previewRenderedMsg struct {
	docName string
	msgID   int
	content string
	hitLine int
	err     error
}

// loadPreviewCmd returns a tea.Cmd that reads and renders a document async.
func loadPreviewCmd(store *document.Store, r search.Result, query string, width int) tea.Cmd {
	return func() tea.Msg {
		msg := previewRenderedMsg{docName: r.DocName, msgID: r.MsgID, hitLine: -1}
		body, err := store.Read(r.Path)
		if err != nil {
			msg.err = err
			return msg
		}
		doc, err := document.Decode(body, time.Local)
		if err != nil {
			doc = document.Document{ExtractedAt: r.ExtractedAt, Raw: body}
		}
		msg.content, msg.hitLine = render.Document(r.DocName, doc, render.Options{
			Width:      width,
			Query:      query,
			HitMessage: r.MsgID,
		})
		return msg
	}
}

// newViewport creates a new viewport model with the given dimensions.
func newViewport(width, height int) viewport.Model {
	vp := viewport.New(width, height)
	vp.Style = stylePanelBorder
	return vp
}
