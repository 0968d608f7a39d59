package notification

import (
	"io"
	"os"
	"sync"

	"github.com/fatih/color"

	"wallet-swap/pkg/transaction"
)

// Console prints notifications to a terminal
type Console struct {
	mu  sync.Mutex
	out io.Writer
}

// NewConsole writes to w, or stdout when w is nil
func NewConsole(w io.Writer) *Console {
	if w == nil {
		w = os.Stdout
	}
	return &Console{out: w}
}

func (c *Console) Present(n Notification) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case n.Kind == KindOrderFailed:
		color.New(color.FgYellow).Fprintf(c.out, "⚠ %s\n", n.Message())
	case n.TxStatus == transaction.StatusFailed:
		color.New(color.FgRed).Fprintf(c.out, "✗ %s\n", n.Message())
	default:
		color.New(color.FgGreen).Fprintf(c.out, "✓ %s\n", n.Message())
	}
	if n.TxID != "" {
		color.New(color.FgHiBlack).Fprintf(c.out, "  id: %s\n", n.TxID)
	}
}
