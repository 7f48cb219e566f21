package integration

import (
	"net/http"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	v0 "github.com/revenuleaks/billing-sync-server/internal/api/v0"
	"github.com/revenuleaks/billing-sync-server/internal/signals"
	"github.com/revenuleaks/billing-sync-server/internal/status"
	"github.com/revenuleaks/billing-sync-server/test-integration/sync-api/helpers"
)

var _ = Describe("Signal Detection", Label("signals"), func() {
	const accountID = "acct_it_signals"

	var (
		tempDir      string
		billingStub  *helpers.StubBillingServer
		serverHelper *helpers.ServerTestHelper
	)

	// syncToReady runs a forced sync to completion, recording one snapshot.
	syncToReady := func() {
		resp, err := serverHelper.TriggerSync(accountID, true)
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.StatusCode).To(Equal(http.StatusAccepted))
		_ = resp.Body.Close()
		serverHelper.WaitForStage(accountID, status.StageReady, 10*time.Second)
	}

	AfterEach(func() {
		Expect(serverHelper.StopServer()).To(Succeed())
		billingStub.Close()
		cleanupTempDir(tempDir)
	})

	Context("On-demand detection", func() {
		BeforeEach(func() {
			tempDir = createTempDir("signals-test-")
			dataDir := filepath.Join(tempDir, "data")
			err := os.MkdirAll(dataDir, 0750)
			Expect(err).NotTo(HaveOccurred())

			billingStub = helpers.NewStubBillingServer(helpers.CreateStableFleetDataset(time.Now()))

			configFile := helpers.WriteConfigYAML(tempDir, helpers.ConfigOptions{
				AccountIDs: []string{accountID},
				BillingURL: billingStub.URL(),
			})

			serverHelper = helpers.NewServerTestHelper(ctx, configFile, nextPort(), dataDir)
			Expect(serverHelper.StartServer()).To(Succeed())
			serverHelper.WaitForServerReady(10 * time.Second)
		})

		It("should return nothing for an account with no snapshots", func() {
			resp, err := serverHelper.DetectSignals(accountID)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			detect := helpers.DecodeJSON[v0.DetectResponse](resp)
			Expect(detect.AccountID).To(Equal(accountID))
			Expect(detect.Inserted).To(BeZero())
			Expect(detect.Signals).To(BeEmpty())
		})

		It("should detect a churn spike and deduplicate repeat detections", func() {
			By("recording a zero churn baseline")
			syncToReady()

			By("syncing again after two of ten subscriptions canceled")
			billingStub.SetDataset(helpers.CreateChurnedFleetDataset(time.Now()))
			syncToReady()

			By("running detection")
			resp, err := serverHelper.DetectSignals(accountID)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			detect := helpers.DecodeJSON[v0.DetectResponse](resp)
			Expect(detect.Inserted).To(Equal(1))
			Expect(detect.Signals).To(HaveLen(1))

			signal := detect.Signals[0]
			Expect(signal.AccountID).To(Equal(accountID))
			Expect(signal.Type).To(Equal(signals.TypeChurnSpike))
			Expect(signal.Severity).To(Equal(signals.SeverityHigh))
			Expect(signal.Message).To(ContainSubstring("churn rate rose"))
			Expect(signal.Value).NotTo(BeNil())
			Expect(*signal.Value).To(BeNumerically("~", 20.0, 0.01),
				"the rise from 0% to 20% churn is 20 points")

			By("running detection again against the same snapshots")
			repeat, err := serverHelper.DetectSignals(accountID)
			Expect(err).NotTo(HaveOccurred())
			Expect(repeat.StatusCode).To(Equal(http.StatusOK))

			detect = helpers.DecodeJSON[v0.DetectResponse](repeat)
			Expect(detect.Inserted).To(BeZero())
			Expect(detect.Signals).To(BeEmpty())

			listResp, err := serverHelper.GetSignals(accountID, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(listResp.StatusCode).To(Equal(http.StatusOK))

			list := helpers.DecodeJSON[v0.SignalsResponse](listResp)
			Expect(list.Total).To(Equal(int64(1)))
			Expect(list.Signals).To(HaveLen(1))
		})

		It("should list signals newest-first and honor the limit", func() {
			By("inserting a churn spike signal")
			syncToReady()
			billingStub.SetDataset(helpers.CreateChurnedFleetDataset(time.Now()))
			syncToReady()

			resp, err := serverHelper.DetectSignals(accountID)
			Expect(err).NotTo(HaveOccurred())
			detect := helpers.DecodeJSON[v0.DetectResponse](resp)
			Expect(detect.Inserted).To(Equal(1))

			By("inserting a payment failure signal")
			billingStub.SetDataset(helpers.CreatePaymentFailureDataset(time.Now()))
			syncToReady()

			resp, err = serverHelper.DetectSignals(accountID)
			Expect(err).NotTo(HaveOccurred())
			detect = helpers.DecodeJSON[v0.DetectResponse](resp)
			Expect(detect.Inserted).To(Equal(1))
			Expect(detect.Signals[0].Type).To(Equal(signals.TypePaymentFailure))

			By("listing with a limit of one")
			listResp, err := serverHelper.GetSignals(accountID, 1)
			Expect(err).NotTo(HaveOccurred())
			Expect(listResp.StatusCode).To(Equal(http.StatusOK))

			list := helpers.DecodeJSON[v0.SignalsResponse](listResp)
			Expect(list.Signals).To(HaveLen(1))
			Expect(list.Total).To(Equal(int64(2)), "the total counts past the limit")
			Expect(list.Signals[0].Type).To(Equal(signals.TypePaymentFailure),
				"the newest signal comes first")

			By("listing across all accounts")
			allResp, err := serverHelper.GetSignals("", 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(allResp.StatusCode).To(Equal(http.StatusOK))

			all := helpers.DecodeJSON[v0.SignalsResponse](allResp)
			Expect(all.Total).To(Equal(int64(2)))
		})

		It("should return 404 for an unknown account", func() {
			resp, err := serverHelper.DetectSignals("acct_nobody")
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
			_ = resp.Body.Close()

			listResp, err := serverHelper.GetSignals("acct_nobody", 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(listResp.StatusCode).To(Equal(http.StatusNotFound))
			_ = listResp.Body.Close()
		})
	})

	Context("Detection as part of the sync run", func() {
		BeforeEach(func() {
			tempDir = createTempDir("detect-after-sync-test-")
			dataDir := filepath.Join(tempDir, "data")
			err := os.MkdirAll(dataDir, 0750)
			Expect(err).NotTo(HaveOccurred())

			billingStub = helpers.NewStubBillingServer(helpers.CreatePaymentFailureDataset(time.Now()))

			configFile := helpers.WriteConfigYAML(tempDir, helpers.ConfigOptions{
				AccountIDs:      []string{accountID},
				BillingURL:      billingStub.URL(),
				DetectAfterSync: true,
			})

			serverHelper = helpers.NewServerTestHelper(ctx, configFile, nextPort(), dataDir)
			Expect(serverHelper.StartServer()).To(Succeed())
			serverHelper.WaitForServerReady(10 * time.Second)
		})

		It("should record a payment failure signal without a detect call", func() {
			syncToReady()

			listResp, err := serverHelper.GetSignals(accountID, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(listResp.StatusCode).To(Equal(http.StatusOK))

			list := helpers.DecodeJSON[v0.SignalsResponse](listResp)
			Expect(list.Total).To(Equal(int64(1)))
			Expect(list.Signals).To(HaveLen(1))

			signal := list.Signals[0]
			Expect(signal.Type).To(Equal(signals.TypePaymentFailure))
			Expect(signal.Severity).To(Equal(signals.SeverityHigh))
			Expect(signal.Message).To(ContainSubstring("4 failed charges in the last 7 days"))
			Expect(signal.Value).NotTo(BeNil())
			Expect(*signal.Value).To(Equal(float64(4)))
			Expect(signal.Meta).To(HaveKeyWithValue("failed_7d", float64(4)))
			Expect(signal.Meta).To(HaveKeyWithValue("failed_30d", float64(5)))

			By("running manual detection after the pipeline already detected")
			resp, err := serverHelper.DetectSignals(accountID)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			detect := helpers.DecodeJSON[v0.DetectResponse](resp)
			Expect(detect.Inserted).To(BeZero(),
				"the same occurrence is never recorded twice")
		})
	})
})
