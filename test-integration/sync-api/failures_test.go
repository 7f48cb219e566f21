package integration

import (
	"net/http"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/revenuleaks/billing-sync-server/internal/aggregates"
	"github.com/revenuleaks/billing-sync-server/internal/status"
	"github.com/revenuleaks/billing-sync-server/test-integration/sync-api/helpers"
)

var _ = Describe("Sync Failure Handling", Label("sync", "failure"), func() {
	const accountID = "acct_it_failure"

	var (
		tempDir      string
		billingStub  *helpers.StubBillingServer
		serverHelper *helpers.ServerTestHelper
	)

	BeforeEach(func() {
		tempDir = createTempDir("failure-test-")
		dataDir := filepath.Join(tempDir, "data")
		err := os.MkdirAll(dataDir, 0750)
		Expect(err).NotTo(HaveOccurred())

		billingStub = helpers.NewStubBillingServer(helpers.CreateHealthyDataset(time.Now()))

		// Default page size keeps each collection to a single request, so
		// the request counts below are exact.
		configFile := helpers.WriteConfigYAML(tempDir, helpers.ConfigOptions{
			AccountIDs:      []string{accountID},
			BillingURL:      billingStub.URL(),
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

	It("should report a failed run and recover on the next trigger", func() {
		requestsBefore := billingStub.Requests()
		billingStub.FailWith(http.StatusInternalServerError)

		resp, err := serverHelper.TriggerSync(accountID, false)
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.StatusCode).To(Equal(http.StatusAccepted))
		_ = resp.Body.Close()

		failed := serverHelper.WaitForStage(accountID, status.StageError, 10*time.Second)
		Expect(failed.Message).To(ContainSubstring("failed to pull subscriptions"))
		Expect(len(failed.Message)).To(BeNumerically("<=", 200))
		Expect(failed.LastSyncedAt).To(BeNil())
		// The run died on its first step, before any pull milestone.
		Expect(failed.Progress).To(Equal(5))

		// One retry for a server error, then the run gives up.
		Expect(billingStub.Requests() - requestsBefore).To(Equal(2))

		// A failed run must not leave a partial snapshot behind.
		metricsResp, err := serverHelper.GetLatestMetrics(accountID)
		Expect(err).NotTo(HaveOccurred())
		Expect(metricsResp.StatusCode).To(Equal(http.StatusNotFound))
		_ = metricsResp.Body.Close()

		// A previous failure makes the account due again without force.
		billingStub.FailWith(0)
		retry, err := serverHelper.TriggerSync(accountID, false)
		Expect(err).NotTo(HaveOccurred())
		Expect(retry.StatusCode).To(Equal(http.StatusAccepted))
		_ = retry.Body.Close()

		recovered := serverHelper.WaitForStage(accountID, status.StageReady, 10*time.Second)
		Expect(recovered.Message).To(Equal("sync complete"))
		Expect(recovered.Progress).To(Equal(100))
		Expect(recovered.LastSyncedAt).NotTo(BeNil())

		metricsResp, err = serverHelper.GetLatestMetrics(accountID)
		Expect(err).NotTo(HaveOccurred())
		Expect(metricsResp.StatusCode).To(Equal(http.StatusOK))

		snapshot := helpers.DecodeJSON[aggregates.MetricSnapshot](metricsResp)
		Expect(snapshot.MRRCents).To(Equal(int64(9000)))
	})

	It("should fail fast when the billing platform rejects the credentials", func() {
		requestsBefore := billingStub.Requests()
		billingStub.FailWith(http.StatusUnauthorized)

		resp, err := serverHelper.TriggerSync(accountID, false)
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.StatusCode).To(Equal(http.StatusAccepted))
		_ = resp.Body.Close()

		failed := serverHelper.WaitForStage(accountID, status.StageError, 10*time.Second)
		Expect(failed.Message).To(ContainSubstring("failed to pull subscriptions"))

		// Rejected credentials are fatal: no retry.
		Expect(billingStub.Requests() - requestsBefore).To(Equal(1))
	})
})
