package internal_test

import (
	"github.com/frahmantamala/redteam-collab/internal"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("ServerConfig", func() {
	It("accepts trusted proxies as addresses and CIDRs", func() {
		cfg := internal.ServerConfig{TrustedProxies: "10.0.0.0/8, 192.0.2.1"}
		Expect(cfg.Validate()).To(Succeed())
	})

	It("rejects a malformed trusted proxy", func() {
		cfg := internal.ServerConfig{TrustedProxies: "10.0.0.0/8,load-balancer"}
		Expect(cfg.Validate()).To(MatchError(ContainSubstring("invalid trusted proxy load-balancer")))
	})
})

var _ = Describe("LoadConfigFromEnv", func() {
	It("defaults the OpenVAS binary", func() {
		cfg := internal.LoadConfigFromEnv()
		Expect(cfg.LiveData.OpenVASBinary).To(Equal(internal.DefaultOpenVASBinary))
	})
})
