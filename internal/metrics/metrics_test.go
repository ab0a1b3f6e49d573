package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestGinMiddlewareObservesRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(GinMiddleware("/v1/ws/triggers"))
	r.GET("/v1/items/:id", func(c *gin.Context) { c.Status(http.StatusTeapot) })

	before := testutil.CollectAndCount(HTTPRequestDuration)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/items/42", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)

	assert.Equal(t, before+1, testutil.CollectAndCount(HTTPRequestDuration))
}

func TestCountersIncrement(t *testing.T) {
	before := testutil.ToFloat64(AlertsTriggered.WithLabelValues("BELI"))
	AlertsTriggered.WithLabelValues("BELI").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(AlertsTriggered.WithLabelValues("BELI")))
}
