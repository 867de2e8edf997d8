// internal/services/scheduler_service_test.go
package services

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropmart/storefront-backend/internal/config"
	"github.com/dropmart/storefront-backend/internal/marketplace"
	"github.com/dropmart/storefront-backend/internal/models"
)

func newSchedulerFixture(t *testing.T) (*Scheduler, *CatalogService, *httptest.Server, *config.Config) {
	db := newTestDB(t)

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/authentication/getAccessToken", func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusOK, true, map[string]string{
			"accessToken":           "test-token",
			"accessTokenExpiryDate": time.Now().Add(time.Hour).Format(time.RFC3339),
			"refreshToken":          "test-refresh",
		}, "")
	})
	mux.HandleFunc("/v1/product/query", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("pid") == "P-broken" {
			writeEnvelope(w, http.StatusInternalServerError, false, nil, "remote detail unavailable")
			return
		}
		payload := defaultRemoteProduct()
		payload["pid"] = r.URL.Query().Get("pid")
		writeEnvelope(w, http.StatusOK, true, payload, "")
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	cfg := newTestConfig(server.URL)
	cfg.Scheduler = config.SchedulerConfig{
		Enabled:              true,
		TokenRefreshInterval: 60,
		CatalogSyncInterval:  60,
		OrderPollInterval:    60,
		HealthCheckInterval:  60,
		CatalogSyncBatchSize: 10,
		OrderPollBatchSize:   10,
	}

	client := marketplace.NewClient(server.URL)
	tokens := NewTokenService(db, client, cfg)
	catalog := NewCatalogService(db, client, tokens)
	orders := NewOrderService(db, client, tokens)
	return NewScheduler(db, cfg, tokens, catalog, orders), catalog, server, cfg
}

func TestCatalogResyncRunPersistsSummary(t *testing.T) {
	sched, catalog, _, _ := newSchedulerFixture(t)

	_, err := catalog.ImportProduct("P100", nil)
	require.NoError(t, err)

	sched.runCatalogResync()

	var run models.SyncRun
	require.NoError(t, sched.db.Where("task_name = ?", "catalog_resync").First(&run).Error)
	assert.Equal(t, 1, run.Processed)
	assert.Equal(t, 1, run.Succeeded)
	assert.Equal(t, 0, run.Failed)
	assert.NotNil(t, run.FinishedAt)
}

func TestCatalogResyncIsolatesItemFailures(t *testing.T) {
	sched, catalog, _, _ := newSchedulerFixture(t)

	_, err := catalog.ImportProduct("P100", nil)
	require.NoError(t, err)

	// A product whose remote detail call fails must not sink the batch.
	require.NoError(t, sched.db.Create(&models.Product{
		RemoteProductID: "P-broken",
		Title:           "Broken",
		IsInStore:       true,
	}).Error)

	sched.runCatalogResync()

	var run models.SyncRun
	require.NoError(t, sched.db.Where("task_name = ?", "catalog_resync").First(&run).Error)
	assert.Equal(t, 2, run.Processed)
	assert.Equal(t, 1, run.Succeeded)
	assert.Equal(t, 1, run.Failed)
}

func TestSchedulerStartStopLifecycle(t *testing.T) {
	sched, _, _, _ := newSchedulerFixture(t)

	sched.Start()
	// Stop must terminate every loop and return.
	done := make(chan struct{})
	go func() {
		sched.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop in time")
	}
}

func TestSchedulerDisabledByConfig(t *testing.T) {
	sched, _, _, cfg := newSchedulerFixture(t)
	cfg.Scheduler.Enabled = false

	sched.Start()
	sched.Stop() // no goroutines were launched; Stop returns immediately
}
