package metrics

import (
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

func TestServeRegistersMetrics(t *testing.T) {
	srv, err := Serve("127.0.0.1:0", zerolog.Nop())
	if err != nil {
		t.Fatalf("serve: %v", err)
	}
	defer srv.Close()

	FetchesTotal.WithLabelValues("eastmoney", "ok").Inc()
	CrossoversTotal.WithLabelValues("golden_cross").Inc()

	mfs, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	want := map[string]bool{"lens_fetches_total": false, "lens_crossovers_total": false}
	for _, mf := range mfs {
		if _, ok := want[mf.GetName()]; ok {
			want[mf.GetName()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Fatalf("%s metric not found", name)
		}
	}
}

func TestHandlerExposesSignals(t *testing.T) {
	SignalsTotal.WithLabelValues("ma250_no_action", "warning").Inc()

	rec := httptest.NewRecorder()
	promhttp.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rec.Body.String(), `lens_signals_total{rule="ma250_no_action",severity="warning"}`) {
		t.Fatalf("signals counter missing from exposition")
	}
}

func TestServeExposesEndpoint(t *testing.T) {
	srv, err := Serve("127.0.0.1:0", zerolog.Nop())
	if err != nil {
		t.Fatalf("serve: %v", err)
	}
	defer srv.Close()
	ScansTotal.WithLabelValues("daily").Inc()

	resp, err := http.Get("http://" + srv.Addr + "/metrics")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), `lens_scans_total{kind="daily"}`) {
		t.Errorf("scans counter missing from /metrics")
	}
}

func TestServeReportsBindFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	if srv, err := Serve(ln.Addr().String(), zerolog.Nop()); err == nil {
		srv.Close()
		t.Fatalf("expected bind error for %s", ln.Addr())
	}
}
