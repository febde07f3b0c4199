package exporters

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/smazurov/yuvcam/internal/metrics"
)

func TestHTTPHandler(t *testing.T) {
	device := "/dev/video-http"
	metrics.RecordFrame(device, 153600)
	defer metrics.DeleteCaptureMetrics(device)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	HTTPHandler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}

	body := w.Body.String()
	for _, name := range []string{"yuvcam_capture_frames_total", "yuvcam_capture_last_frame_bytes"} {
		if !strings.Contains(body, name) {
			t.Errorf("expected %s in response", name)
		}
	}
}
