package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/task-manager/task-manager/internal/auth"
)

// collect drains every series of c. Collect blocks on an unbuffered channel, so it
// runs in its own goroutine.
func collect(c prometheus.Collector) []*dto.Metric {
	ch := make(chan prometheus.Metric)
	go func() {
		c.Collect(ch)
		close(ch)
	}()

	var out []*dto.Metric
	for m := range ch {
		var dm dto.Metric
		if err := m.Write(&dm); err == nil {
			out = append(out, &dm)
		}
	}
	return out
}

func hasLabels(dm *dto.Metric, labels prometheus.Labels) bool {
	for k, want := range labels {
		found := false
		for _, lp := range dm.GetLabel() {
			if lp.GetName() == k && lp.GetValue() == want {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// counterValue returns the counter value of the series matching labels, or 0 when
// the series has not been observed yet.
func counterValue(c prometheus.Collector, labels prometheus.Labels) float64 {
	for _, dm := range collect(c) {
		if hasLabels(dm, labels) {
			return dm.GetCounter().GetValue()
		}
	}
	return 0
}

func histogramCount(c prometheus.Collector, labels prometheus.Labels) uint64 {
	for _, dm := range collect(c) {
		if hasLabels(dm, labels) {
			return dm.GetHistogram().GetSampleCount()
		}
	}
	return 0
}

func testPrincipal(role auth.Role) *auth.Principal {
	return &auth.Principal{
		SubjectID:      "user-" + string(role),
		Email:          string(role) + "@acme.test",
		OrganizationID: "org-1",
		Role:           role,
	}
}

func bearerFor(t *testing.T, p *auth.Principal) string {
	t.Helper()
	token, err := auth.GenerateJWT(p, time.Hour)
	if err != nil {
		t.Fatalf("GenerateJWT: %v", err)
	}
	return "Bearer " + token
}

func doGET(r *gin.Engine, path, authorization string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}
