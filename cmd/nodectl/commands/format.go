package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"
)

const (
	formatJSON  = "json"
	formatTable = "table"
)

// errUnsupportedFormat is returned when the requested output format is not supported.
var errUnsupportedFormat = errors.New("unsupported output format")

func formatServices(v servicesView, format string) (string, error) {
	switch format {
	case formatJSON:
		return formatJSONValue(v)
	case formatTable:
		return formatServicesTable(v), nil
	default:
		return "", fmt.Errorf("%w: %q", errUnsupportedFormat, format)
	}
}

func formatTunnels(v []tunnelView, format string) (string, error) {
	switch format {
	case formatJSON:
		return formatJSONValue(v)
	case formatTable:
		return formatTunnelsTable(v), nil
	default:
		return "", fmt.Errorf("%w: %q", errUnsupportedFormat, format)
	}
}

func formatHealthz(v healthzView, format string) (string, error) {
	switch format {
	case formatJSON:
		return formatJSONValue(v)
	case formatTable:
		return fmt.Sprintf("status: %s\ndid:    %s\n", v.Status, v.DID), nil
	default:
		return "", fmt.Errorf("%w: %q", errUnsupportedFormat, format)
	}
}

func formatJSONValue(v any) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal to JSON: %w", err)
	}
	return string(data), nil
}

func formatServicesTable(v servicesView) string {
	var buf strings.Builder
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)

	fmt.Fprintln(w, "KIND\tNAME")
	for _, name := range v.TCP {
		fmt.Fprintf(w, "tcp\t%s\n", name)
	}
	for _, name := range v.HTTP {
		fmt.Fprintf(w, "http\t%s\n", name)
	}
	_ = w.Flush()

	return buf.String()
}

func formatTunnelsTable(tunnels []tunnelView) string {
	var buf strings.Builder
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)

	fmt.Fprintln(w, "TID\tPEER\tSTATE")
	for _, tu := range tunnels {
		fmt.Fprintf(w, "%s\t%s\t%s\n", tu.Tid, tu.Peer, tu.State)
	}
	_ = w.Flush()

	return buf.String()
}
