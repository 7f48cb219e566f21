package integration

import (
	"net/http"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/revenuleaks/billing-sync-server/internal/aggregates"
	v0 "github.com/revenuleaks/billing-sync-server/internal/api/v0"
	"github.com/revenuleaks/billing-sync-server/internal/status"
	"github.com/revenuleaks/billing-sync-server/test-integration/sync-api/helpers"
)

var _ = Describe("Sync Lifecycle", Label("sync"), func() {
	const accountID = "acct_it_sync"

	var (
		tempDir      string
		dataDir      string
		configFile   string
		billingStub  *helpers.StubBillingServer
		serverHelper *helpers.ServerTestHelper
	)

	BeforeEach(func() {
		tempDir = createTempDir("sync-test-")
		dataDir = filepath.Join(tempDir, "data")
		err := os.MkdirAll(dataDir, 0750)
		Expect(err).NotTo(HaveOccurred())

		billingStub = helpers.NewStubBillingServer(helpers.CreateHealthyDataset(time.Now()))

		// A small page size forces the sync to walk several pages per
		// collection. The wide freshness window keeps repeat triggers
		// deterministic within a spec.
		configFile = helpers.WriteConfigYAML(tempDir, helpers.ConfigOptions{
			AccountIDs:      []string{accountID},
			BillingURL:      billingStub.URL(),
			PageSize:        2,
			FreshnessWindow: "15m",
		})

		serverHelper = helpers.NewServerTestHelper(ctx, configFile, nextPort(), dataDir)
		Expect(serverHelper.StartServer()).To(Succeed())
		serverHelper.WaitForServerReady(10 * time.Second)
	})

	AfterEach(func() {
		Expect(serverHelper.StopServer()).To(Succeed())
		billingStub.Close()
		cleanupTempDir(tempDir)
	})

	Context("Before any sync has run", func() {
		It("should report an idle status", func() {
			resp, err := serverHelper.GetSyncStatus(accountID)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			syncStatus := helpers.DecodeJSON[status.SyncStatus](resp)
			Expect(syncStatus.AccountID).To(Equal(accountID))
			Expect(syncStatus.Stage).To(Equal(status.StageIdle))
			Expect(syncStatus.Progress).To(Equal(0))
			Expect(syncStatus.Message).To(Equal("ready to sync"))
			Expect(syncStatus.LastSyncedAt).To(BeNil())
		})

		It("should report no metric snapshot", func() {
			resp, err := serverHelper.GetLatestMetrics(accountID)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))

			errResp := helpers.DecodeJSON[v0.ErrorResponse](resp)
			Expect(errResp.Error).To(Equal("No metric snapshot recorded for account: " + accountID))
		})
	})

	Context("Triggering a sync", func() {
		It("should run a full sync and record a metric snapshot", func() {
			resp, err := serverHelper.TriggerSync(accountID, false)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusAccepted))

			trigger := helpers.DecodeJSON[v0.SyncTriggerResponse](resp)
			Expect(trigger.AccountID).To(Equal(accountID))
			Expect(trigger.Result).To(Equal("triggered"))
			Expect(trigger.Message).To(Equal("sync queued"))

			syncStatus := serverHelper.WaitForStage(accountID, status.StageReady, 10*time.Second)
			Expect(syncStatus.Progress).To(Equal(100))
			Expect(syncStatus.Message).To(Equal("sync complete"))
			Expect(syncStatus.LastSyncedAt).NotTo(BeNil())
			Expect(*syncStatus.LastSyncedAt).To(BeTemporally("~", time.Now(), time.Minute))

			// Every collection is larger than one page, so the walk must
			// have paginated: 3 + 2 + 2 + 2 page requests at pageSize 2.
			Expect(billingStub.Requests()).To(BeNumerically(">=", 9))

			metricsResp, err := serverHelper.GetLatestMetrics(accountID)
			Expect(err).NotTo(HaveOccurred())
			Expect(metricsResp.StatusCode).To(Equal(http.StatusOK))

			snapshot := helpers.DecodeJSON[aggregates.MetricSnapshot](metricsResp)
			Expect(snapshot.AccountID).To(Equal(accountID))
			Expect(snapshot.MRRCents).To(Equal(int64(9000)))
			Expect(snapshot.ActiveSubscriptions).To(Equal(3))
			Expect(snapshot.CanceledLast30d).To(Equal(0))
			Expect(snapshot.TotalCustomers).To(Equal(2))
			Expect(snapshot.DelinquentCustomers).To(Equal(1))
			Expect(snapshot.OpenInvoices).To(Equal(2))
			Expect(snapshot.OverdueInvoiceCents).To(Equal(int64(4000)))
			Expect(snapshot.FailedCharges7d).To(Equal(0))
			Expect(snapshot.FailedCharges30d).To(Equal(1))
			Expect(snapshot.ChurnRate).To(BeZero())
		})

		It("should record an all-zero snapshot for an account with no billing data", func() {
			billingStub.SetDataset(helpers.BillingDataset{})

			resp, err := serverHelper.TriggerSync(accountID, false)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusAccepted))
			_ = resp.Body.Close()

			serverHelper.WaitForStage(accountID, status.StageReady, 10*time.Second)

			metricsResp, err := serverHelper.GetLatestMetrics(accountID)
			Expect(err).NotTo(HaveOccurred())
			Expect(metricsResp.StatusCode).To(Equal(http.StatusOK))

			snapshot := helpers.DecodeJSON[aggregates.MetricSnapshot](metricsResp)
			Expect(snapshot.MRRCents).To(BeZero())
			Expect(snapshot.ActiveSubscriptions).To(BeZero())
			Expect(snapshot.TotalCustomers).To(BeZero())
			Expect(snapshot.ChurnRate).To(BeZero())
		})

		It("should return 404 for an unknown account", func() {
			resp, err := serverHelper.TriggerSync("acct_nobody", false)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))

			errResp := helpers.DecodeJSON[v0.ErrorResponse](resp)
			Expect(errResp.Error).To(Equal("Unknown account: acct_nobody"))

			statusResp, err := serverHelper.GetSyncStatus("acct_nobody")
			Expect(err).NotTo(HaveOccurred())
			Expect(statusResp.StatusCode).To(Equal(http.StatusNotFound))
			_ = statusResp.Body.Close()
		})

		It("should reject a trigger without an account id", func() {
			resp, err := serverHelper.TriggerSync("", false)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))

			errResp := helpers.DecodeJSON[v0.ErrorResponse](resp)
			Expect(errResp.Error).To(Equal("account_id is required"))
		})
	})

	Context("Freshness window", func() {
		It("should skip a repeat trigger inside the window", func() {
			resp, err := serverHelper.TriggerSync(accountID, false)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusAccepted))
			_ = resp.Body.Close()

			serverHelper.WaitForStage(accountID, status.StageReady, 10*time.Second)

			repeat, err := serverHelper.TriggerSync(accountID, false)
			Expect(err).NotTo(HaveOccurred())
			Expect(repeat.StatusCode).To(Equal(http.StatusOK))

			trigger := helpers.DecodeJSON[v0.SyncTriggerResponse](repeat)
			Expect(trigger.Result).To(Equal("skipped"))
			Expect(trigger.Message).To(Equal("last sync is recent enough, use force to sync anyway"))
		})

		It("should run again when forced", func() {
			resp, err := serverHelper.TriggerSync(accountID, false)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusAccepted))
			_ = resp.Body.Close()

			first := serverHelper.WaitForStage(accountID, status.StageReady, 10*time.Second)
			Expect(first.LastSyncedAt).NotTo(BeNil())

			forced, err := serverHelper.TriggerSync(accountID, true)
			Expect(err).NotTo(HaveOccurred())
			Expect(forced.StatusCode).To(Equal(http.StatusAccepted))

			trigger := helpers.DecodeJSON[v0.SyncTriggerResponse](forced)
			Expect(trigger.Result).To(Equal("triggered"))

			second := serverHelper.WaitForStage(accountID, status.StageReady, 10*time.Second)
			Expect(second.LastSyncedAt).NotTo(BeNil())
			Expect(second.LastSyncedAt.After(*first.LastSyncedAt)).To(BeTrue(),
				"a forced run should advance last_synced_at")
		})
	})

	Context("Concurrent triggers", func() {
		It("should reject a second trigger while a run is in flight", func() {
			// Slow every billing request down so the first run is still
			// executing when the second trigger arrives.
			billingStub.SetDelay(500 * time.Millisecond)

			resp, err := serverHelper.TriggerSync(accountID, false)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusAccepted))
			_ = resp.Body.Close()

			conflict, err := serverHelper.TriggerSync(accountID, false)
			Expect(err).NotTo(HaveOccurred())
			Expect(conflict.StatusCode).To(Equal(http.StatusConflict))

			trigger := helpers.DecodeJSON[v0.SyncTriggerResponse](conflict)
			Expect(trigger.Result).To(Equal("already_syncing"))
			Expect(trigger.Message).To(Equal("a sync run for this account is already in progress"))

			statusResp, err := serverHelper.GetSyncStatus(accountID)
			Expect(err).NotTo(HaveOccurred())
			syncStatus := helpers.DecodeJSON[status.SyncStatus](statusResp)
			Expect(syncStatus.Stage).To(Equal(status.StageSyncing))
			Expect(syncStatus.Progress).To(BeNumerically(">=", 5))
			Expect(syncStatus.Progress).To(BeNumerically("<", 100))

			billingStub.SetDelay(0)
			serverHelper.WaitForStage(accountID, status.StageReady, 15*time.Second)
		})
	})
})

var _ = Describe("Background Sync", Label("sync"), func() {
	const accountID = "acct_it_autosync"

	var (
		tempDir      string
		billingStub  *helpers.StubBillingServer
		serverHelper *helpers.ServerTestHelper
	)

	BeforeEach(func() {
		tempDir = createTempDir("autosync-test-")
		dataDir := filepath.Join(tempDir, "data")
		err := os.MkdirAll(dataDir, 0750)
		Expect(err).NotTo(HaveOccurred())

		billingStub = helpers.NewStubBillingServer(helpers.CreateHealthyDataset(time.Now()))

		configFile := helpers.WriteConfigYAML(tempDir, helpers.ConfigOptions{
			AccountIDs:       []string{accountID},
			BillingURL:       billingStub.URL(),
			AutoSyncInterval: "1m",
		})

		serverHelper = helpers.NewServerTestHelper(ctx, configFile, nextPort(), dataDir)
		Expect(serverHelper.StartServer()).To(Succeed())
		serverHelper.WaitForServerReady(10 * time.Second)
	})

	AfterEach(func() {
		Expect(serverHelper.StopServer()).To(Succeed())
		billingStub.Close()
		cleanupTempDir(tempDir)
	})

	It("should sync an auto sync account without a manual trigger", func() {
		// The coordinator checks for due accounts once at startup, and an
		// account that has never synced is always due.
		syncStatus := serverHelper.WaitForStage(accountID, status.StageReady, 15*time.Second)
		Expect(syncStatus.Message).To(Equal("sync complete"))
		Expect(syncStatus.LastSyncedAt).NotTo(BeNil())

		metricsResp, err := serverHelper.GetLatestMetrics(accountID)
		Expect(err).NotTo(HaveOccurred())
		Expect(metricsResp.StatusCode).To(Equal(http.StatusOK))

		snapshot := helpers.DecodeJSON[aggregates.MetricSnapshot](metricsResp)
		Expect(snapshot.MRRCents).To(Equal(int64(9000)))
	})
})

var _ = Describe("Server Restart", Label("sync"), func() {
	const accountID = "acct_it_restart"

	var (
		tempDir      string
		dataDir      string
		configFile   string
		billingStub  *helpers.StubBillingServer
		serverHelper *helpers.ServerTestHelper
	)

	BeforeEach(func() {
		tempDir = createTempDir("restart-test-")
		dataDir = filepath.Join(tempDir, "data")
		err := os.MkdirAll(dataDir, 0750)
		Expect(err).NotTo(HaveOccurred())

		billingStub = helpers.NewStubBillingServer(helpers.CreateHealthyDataset(time.Now()))

		configFile = helpers.WriteConfigYAML(tempDir, helpers.ConfigOptions{
			AccountIDs: []string{accountID},
			BillingURL: billingStub.URL(),
		})

		serverHelper = helpers.NewServerTestHelper(ctx, configFile, nextPort(), dataDir)
		Expect(serverHelper.StartServer()).To(Succeed())
		serverHelper.WaitForServerReady(10 * time.Second)
	})

	AfterEach(func() {
		Expect(serverHelper.StopServer()).To(Succeed())
		billingStub.Close()
		cleanupTempDir(tempDir)
	})

	It("should retain sync state and snapshots across a restart", func() {
		resp, err := serverHelper.TriggerSync(accountID, false)
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.StatusCode).To(Equal(http.StatusAccepted))
		_ = resp.Body.Close()

		first := serverHelper.WaitForStage(accountID, status.StageReady, 10*time.Second)
		Expect(first.LastSyncedAt).NotTo(BeNil())

		Expect(serverHelper.StopServer()).To(Succeed())

		// Same config and data directory, fresh port.
		restarted := helpers.NewServerTestHelper(ctx, configFile, nextPort(), dataDir)
		Expect(restarted.StartServer()).To(Succeed())
		defer func() {
			_ = restarted.StopServer()
		}()
		restarted.WaitForServerReady(10 * time.Second)

		statusResp, err := restarted.GetSyncStatus(accountID)
		Expect(err).NotTo(HaveOccurred())
		Expect(statusResp.StatusCode).To(Equal(http.StatusOK))

		reloaded := helpers.DecodeJSON[status.SyncStatus](statusResp)
		Expect(reloaded.Stage).To(Equal(status.StageReady))
		Expect(reloaded.LastSyncedAt).NotTo(BeNil())
		Expect(*reloaded.LastSyncedAt).To(BeTemporally("~", *first.LastSyncedAt, time.Second))

		metricsResp, err := restarted.GetLatestMetrics(accountID)
		Expect(err).NotTo(HaveOccurred())
		Expect(metricsResp.StatusCode).To(Equal(http.StatusOK))

		snapshot := helpers.DecodeJSON[aggregates.MetricSnapshot](metricsResp)
		Expect(snapshot.MRRCents).To(Equal(int64(9000)))
	})
})
