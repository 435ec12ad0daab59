package hxdash

import (
	"context"
	"html"
	"io"
	"strings"

	"github.com/a-h/templ"
)

// Notice levels for toast notifications.
const (
	NoticeSuccess = "success"
	NoticeError   = "error"
	NoticeWarning = "warning"
	NoticeInfo    = "info"
)

// Notice is a one-time message a handler attaches to its result, e.g. to
// explain why a selection was ignored.
//
// In live mode notices are rendered as out-of-band swaps appended to the
// #toasts container. Batch exports ignore them.
type Notice struct {
	Level   string
	Message string
}

// RenderNoticesOOB renders notices as an OOB swap appending to #toasts.
func RenderNoticesOOB(notices []Notice) string {
	if len(notices) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString(`<div id="toasts" hx-swap-oob="` + oobAttr(SwapBeforeEnd) + `">`)
	for _, n := range notices {
		sb.WriteString(`<div class="toast show text-bg-`)
		sb.WriteString(html.EscapeString(bootstrapLevel(n.Level)))
		sb.WriteString(`" role="status" data-auto-dismiss="4000"><div class="toast-body">`)
		sb.WriteString(html.EscapeString(n.Message))
		sb.WriteString(`</div></div>`)
	}
	sb.WriteString(`</div>`)
	return sb.String()
}

func bootstrapLevel(level string) string {
	switch level {
	case NoticeError:
		return "danger"
	case NoticeSuccess, NoticeWarning, NoticeInfo:
		return level
	}
	return "secondary"
}

// ToastContainer is the target of notice swaps. The dashboard page includes
// it near the end of <body>.
func ToastContainer() templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := io.WriteString(w, `<div id="toasts" class="toast-container position-fixed bottom-0 end-0 p-3"></div>`)
		return err
	})
}
