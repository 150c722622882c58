package commands

import (
	"strings"
	"testing"
)

func TestFormatServicesTable(t *testing.T) {
	t.Parallel()

	out, err := formatServices(servicesView{TCP: []string{"ssh"}, HTTP: []string{"web"}}, formatTable)
	if err != nil {
		t.Fatalf("formatServices: %v", err)
	}
	if !strings.Contains(out, "tcp\tssh") || !strings.Contains(out, "http\tweb") {
		t.Errorf("table output missing rows: %q", out)
	}
}

func TestFormatServicesJSON(t *testing.T) {
	t.Parallel()

	out, err := formatServices(servicesView{TCP: []string{"ssh"}}, formatJSON)
	if err != nil {
		t.Fatalf("formatServices: %v", err)
	}
	if !strings.Contains(out, `"tcp"`) || !strings.Contains(out, "ssh") {
		t.Errorf("json output missing fields: %q", out)
	}
}

func TestFormatServicesUnsupportedFormat(t *testing.T) {
	t.Parallel()

	if _, err := formatServices(servicesView{}, "yaml"); err == nil {
		t.Error("formatServices with unsupported format = nil error, want error")
	}
}

func TestFormatTunnelsTable(t *testing.T) {
	t.Parallel()

	tunnels := []tunnelView{{Tid: "t1", Peer: "did:noded:peer", State: "listening"}}
	out, err := formatTunnels(tunnels, formatTable)
	if err != nil {
		t.Fatalf("formatTunnels: %v", err)
	}
	if !strings.Contains(out, "t1") || !strings.Contains(out, "listening") {
		t.Errorf("table output missing tunnel row: %q", out)
	}
}

func TestFormatHealthzTable(t *testing.T) {
	t.Parallel()

	out, err := formatHealthz(healthzView{Status: "ok", DID: "did:noded:self"}, formatTable)
	if err != nil {
		t.Fatalf("formatHealthz: %v", err)
	}
	if !strings.Contains(out, "ok") || !strings.Contains(out, "did:noded:self") {
		t.Errorf("table output missing fields: %q", out)
	}
}
