package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/cococorp/steerd/internal/debugapi"
)

const (
	formatJSON  = "json"
	formatTable = "table"
)

// errUnsupportedFormat is returned when the requested output format is not supported.
var errUnsupportedFormat = errors.New("unsupported output format")

// formatBSSes renders a slice of BSS summaries in the requested format.
func formatBSSes(bsses []debugapi.BSSStatus, format string) (string, error) {
	switch format {
	case formatJSON:
		return formatJSONValue(bsses)
	case formatTable:
		return formatBSSesTable(bsses), nil
	default:
		return "", fmt.Errorf("%w: %q", errUnsupportedFormat, format)
	}
}

// formatBSS renders one BSS, including its clients, in the requested format.
func formatBSS(bs debugapi.BSSStatus, format string) (string, error) {
	switch format {
	case formatJSON:
		return formatJSONValue(bs)
	case formatTable:
		return formatBSSDetail(bs), nil
	default:
		return "", fmt.Errorf("%w: %q", errUnsupportedFormat, format)
	}
}

func formatJSONValue(v any) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal to JSON: %w", err)
	}
	return string(data) + "\n", nil
}

// --- Table formatters ---

func formatBSSesTable(bsses []debugapi.BSSStatus) string {
	var buf strings.Builder
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "HANDLE\tBSSID\tMODE\tCLIENTS")

	for _, bs := range bsses {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\n", bs.Handle, bs.BSSID, bs.Mode, bs.ClientCount)
	}

	_ = w.Flush()
	return buf.String()
}

func formatBSSDetail(bs debugapi.BSSStatus) string {
	var buf strings.Builder
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)

	fmt.Fprintf(w, "Handle:\t%s\n", bs.Handle)
	fmt.Fprintf(w, "BSSID:\t%s\n", bs.BSSID)
	fmt.Fprintf(w, "Mode:\t%s\n", bs.Mode)
	fmt.Fprintf(w, "Client Count:\t%d\n", bs.ClientCount)
	_ = w.Flush()

	if len(bs.Clients) == 0 {
		return buf.String()
	}

	buf.WriteString("\n")
	cw := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
	fmt.Fprintln(cw, "ADDR\tSTATE\tLOCAL\tLOCAL-SCORE\tREMOTE-BSSID\tREMOTE-SCORE\tBTM")
	for _, cl := range bs.Clients {
		fmt.Fprintf(cw, "%s\t%s\t%t\t%d\t%s\t%d\t%t\n",
			cl.Addr, cl.State, cl.Local, cl.LocalScore, cl.RemoteBSSID, cl.RemoteScore, cl.SupportsBTM)
	}
	_ = cw.Flush()

	return buf.String()
}
