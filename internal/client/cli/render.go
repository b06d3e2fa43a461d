package cli

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/dmitrijs2005/carledger/internal/client/models"
	"github.com/dmitrijs2005/carledger/internal/client/monitor"
)

var stateColors = map[monitor.State]*color.Color{
	monitor.StateOffline:     color.New(color.FgRed),
	monitor.StateOnlineIdle:  color.New(color.FgGreen),
	monitor.StateSyncing:     color.New(color.FgCyan),
	monitor.StateSyncSuccess: color.New(color.FgGreen, color.Bold),
	monitor.StateSyncError:   color.New(color.FgYellow, color.Bold),
}

var stateText = map[monitor.State]string{
	monitor.StateOffline:     "offline",
	monitor.StateOnlineIdle:  "online",
	monitor.StateSyncing:     "syncing",
	monitor.StateSyncSuccess: "synced",
	monitor.StateSyncError:   "sync failed",
}

// stateLabel renders s for the prompt. Colors are dropped automatically
// when stdout is not a terminal.
func stateLabel(s monitor.State) string {
	text, ok := stateText[s]
	if !ok {
		text = strings.ToLower(string(s))
	}
	if c, ok := stateColors[s]; ok {
		return c.Sprint(text)
	}
	return text
}

// formatRecord prints id first, then the other fields sorted by name.
// Local markers become trailing tags.
func formatRecord(r models.Record) string {
	keys := make([]string, 0, len(r))
	for k := range r {
		if k == models.FieldID || k == models.MarkerOffline || k == models.MarkerFromCache {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys)+1)
	parts = append(parts, "id="+r.ID())
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, r[k]))
	}

	s := strings.Join(parts, " ")
	if r.IsOffline() {
		s += " [offline]"
	}
	if r.FromCache() {
		s += " [cached]"
	}
	return s
}

func formatStatus(st monitor.Status) string {
	var b strings.Builder
	fmt.Fprintf(&b, "State:   %s\n", stateLabel(st.State))
	fmt.Fprintf(&b, "Online:  %t\n", st.IsOnline)
	fmt.Fprintf(&b, "Pending: %d\n", st.PendingCount)
	if st.LastSync != nil {
		fmt.Fprintf(&b, "Last sync: %s", st.LastSync.Format(time.DateTime))
	} else {
		b.WriteString("Last sync: never")
	}
	if st.LastError != "" {
		fmt.Fprintf(&b, "\nLast error: %s", st.LastError)
	}
	return b.String()
}
