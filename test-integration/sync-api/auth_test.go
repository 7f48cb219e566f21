package integration

import (
	"net/http"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	v0 "github.com/revenuleaks/billing-sync-server/internal/api/v0"
	"github.com/revenuleaks/billing-sync-server/internal/status"
	"github.com/revenuleaks/billing-sync-server/test-integration/sync-api/helpers"
)

var _ = Describe("API Authentication", Label("auth"), func() {
	const (
		accountID = "acct_it_auth"
		apiToken  = "integration-test-token"
	)

	var (
		tempDir      string
		billingStub  *helpers.StubBillingServer
		serverHelper *helpers.ServerTestHelper
		rawClient    *http.Client
	)

	BeforeEach(func() {
		tempDir = createTempDir("auth-test-")
		dataDir := filepath.Join(tempDir, "data")
		err := os.MkdirAll(dataDir, 0750)
		Expect(err).NotTo(HaveOccurred())

		billingStub = helpers.NewStubBillingServer(helpers.CreateHealthyDataset(time.Now()))

		configFile := helpers.WriteConfigYAML(tempDir, helpers.ConfigOptions{
			AccountIDs: []string{accountID},
			BillingURL: billingStub.URL(),
			AuthToken:  apiToken,
		})

		serverHelper = helpers.NewServerTestHelper(ctx, configFile, nextPort(), dataDir).WithToken(apiToken)
		Expect(serverHelper.StartServer()).To(Succeed())
		serverHelper.WaitForServerReady(10 * time.Second)

		// Requests that must not carry the helper's token go through here.
		rawClient = &http.Client{Timeout: 5 * time.Second}
	})

	AfterEach(func() {
		Expect(serverHelper.StopServer()).To(Succeed())
		billingStub.Close()
		cleanupTempDir(tempDir)
	})

	It("should reject API requests without a bearer token", func() {
		resp, err := rawClient.Get(serverHelper.GetBaseURL() + "/api/v0/sync/status?account_id=" + accountID)
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))

		wwwAuth := resp.Header.Get("WWW-Authenticate")
		Expect(wwwAuth).To(ContainSubstring(`realm="billing-sync"`))
		Expect(wwwAuth).To(ContainSubstring(`error="invalid_request"`))

		errResp := helpers.DecodeJSON[v0.ErrorResponse](resp)
		Expect(errResp.Error).To(Equal("missing or malformed authorization header"))
	})

	It("should reject API requests with a wrong token", func() {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet,
			serverHelper.GetBaseURL()+"/api/v0/signals", nil)
		Expect(err).NotTo(HaveOccurred())
		req.Header.Set("Authorization", "Bearer not-the-token")

		resp, err := rawClient.Do(req)
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))

		wwwAuth := resp.Header.Get("WWW-Authenticate")
		Expect(wwwAuth).To(ContainSubstring(`error="invalid_token"`))

		errResp := helpers.DecodeJSON[v0.ErrorResponse](resp)
		Expect(errResp.Error).To(Equal("token validation failed"))
	})

	It("should keep operational endpoints public", func() {
		for _, path := range []string{"/health", "/readiness", "/version"} {
			resp, err := rawClient.Get(serverHelper.GetBaseURL() + path)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK), "%s should not require a token", path)
			_ = resp.Body.Close()
		}

		versionResp, err := rawClient.Get(serverHelper.GetBaseURL() + "/version")
		Expect(err).NotTo(HaveOccurred())
		versionInfo := helpers.DecodeJSON[map[string]string](versionResp)
		Expect(versionInfo).To(HaveKey("version"))
		Expect(versionInfo).To(HaveKey("go_version"))
	})

	It("should serve authenticated requests end to end", func() {
		resp, err := serverHelper.TriggerSync(accountID, false)
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.StatusCode).To(Equal(http.StatusAccepted))
		_ = resp.Body.Close()

		syncStatus := serverHelper.WaitForStage(accountID, status.StageReady, 10*time.Second)
		Expect(syncStatus.Message).To(Equal("sync complete"))

		metricsResp, err := serverHelper.GetLatestMetrics(accountID)
		Expect(err).NotTo(HaveOccurred())
		Expect(metricsResp.StatusCode).To(Equal(http.StatusOK))
		_ = metricsResp.Body.Close()
	})
})
