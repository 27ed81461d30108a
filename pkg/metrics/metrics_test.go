package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/cuemby/replicad/pkg/types"
)

func TestSetResourceRole(t *testing.T) {
	SetResourceRole("data0", types.RoleSecondary)

	assert.Equal(t, 1.0, testutil.ToFloat64(ResourceRole.WithLabelValues("data0", "secondary")))
	assert.Equal(t, 0.0, testutil.ToFloat64(ResourceRole.WithLabelValues("data0", "primary")))

	SetResourceRole("data0", types.RolePrimary)

	assert.Equal(t, 0.0, testutil.ToFloat64(ResourceRole.WithLabelValues("data0", "secondary")))
	assert.Equal(t, 1.0, testutil.ToFloat64(ResourceRole.WithLabelValues("data0", "primary")))
	assert.Equal(t, 0.0, testutil.ToFloat64(ResourceRole.WithLabelValues("data0", "init")))
}

func TestHandlerServesRegisteredMetrics(t *testing.T) {
	ControlRequestsTotal.WithLabelValues("status", "ok").Inc()

	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()
	Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "replicad_control_requests_total")
}
