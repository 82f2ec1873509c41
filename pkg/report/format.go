package report

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/soniclab-network/soniclab/pkg/cli"
	"github.com/soniclab-network/soniclab/pkg/verify"
)

// WriteText renders the report as aligned tables with a verdict line.
func WriteText(w io.Writer, rep *Report) {
	fmt.Fprintf(w, "%s  %s\n\n", cli.Bold(rep.Topology), rep.Timestamp.Format(time.RFC3339))

	nodes := cli.NewTableTo(w, "NODE", "STATE", "CAUSE", "LATENCY", "ATTEMPTS")
	links := cli.NewTableTo(w, "LINK", "STATE", "CAUSE", "ATTEMPTS")
	for _, r := range rep.Results {
		switch r.Kind {
		case verify.KindNode:
			nodes.Row(r.Target, stateCell(r), r.Cause, latencyCell(r), fmt.Sprintf("%d", r.Attempts))
		case verify.KindLink:
			links.Row(r.Target, stateCell(r), r.Cause, fmt.Sprintf("%d", r.Attempts))
		}
	}
	nodes.Flush()
	fmt.Fprintln(w)
	links.Flush()

	if len(rep.Pairs) > 0 {
		fmt.Fprintln(w)
		pairs := cli.NewTableTo(w, "REDUNDANT PAIR", "PATHS")
		for _, p := range rep.Pairs {
			verdict := cli.Green("intact")
			if !p.PathsIntact {
				verdict = cli.Red("broken")
			}
			pairs.Row(p.Pair, verdict)
		}
		pairs.Flush()
	}

	fmt.Fprintf(w, "\nnodes %d/%d  links %d/%d  %s\n",
		rep.NodesReachable, rep.NodesTotal,
		rep.LinksReachable, rep.LinksTotal,
		cli.PassFail(rep.OK))
}

// WriteJSON renders the report as indented JSON for scripting.
func WriteJSON(w io.Writer, rep *Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rep)
}

func stateCell(r verify.Result) string {
	if r.Reachable() {
		return cli.Green(string(r.State))
	}
	return cli.Red(string(r.State))
}

func latencyCell(r verify.Result) string {
	if !r.Reachable() {
		return "-"
	}
	return r.Latency.Round(time.Millisecond).String()
}
