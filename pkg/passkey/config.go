// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-moneta.
//
// go-moneta is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package passkey

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
)

// Config holds the relying party configuration.
type Config struct {
	// RPID is the relying party identifier, typically the effective domain
	// that credentials are scoped to (e.g. "moneta.example.com").
	RPID string `json:"rp_id" yaml:"rp_id" mapstructure:"rp_id"`

	// RPDisplayName is the human readable relying party name shown by
	// authenticator prompts.
	RPDisplayName string `json:"rp_display_name" yaml:"rp_display_name" mapstructure:"rp_display_name"`

	// RPOrigins are the web origins allowed to perform ceremonies
	// (e.g. "https://moneta.example.com").
	RPOrigins []string `json:"rp_origins" yaml:"rp_origins" mapstructure:"rp_origins"`

	// Attestation is the attestation conveyance preference requested during
	// registration: "none", "indirect" or "direct". Untrusted attestation is
	// accepted either way; the statement is recorded, not enforced.
	Attestation string `json:"attestation" yaml:"attestation" mapstructure:"attestation"`

	// UserVerification is the user verification requirement for assertions:
	// "required", "preferred" or "discouraged".
	UserVerification string `json:"user_verification" yaml:"user_verification" mapstructure:"user_verification"`

	// ChallengeTTL is how long an issued ceremony challenge remains valid.
	ChallengeTTL time.Duration `json:"challenge_ttl" yaml:"challenge_ttl" mapstructure:"challenge_ttl"`

	// ChallengeCapacity bounds the number of outstanding challenges. When the
	// cache is full the oldest entry is evicted to make room.
	ChallengeCapacity int `json:"challenge_capacity" yaml:"challenge_capacity" mapstructure:"challenge_capacity"`
}

// DefaultConfig returns a configuration suitable for local development.
func DefaultConfig() *Config {
	return &Config{
		RPID:              "localhost",
		RPDisplayName:     "Moneta",
		RPOrigins:         []string{"http://localhost:8080"},
		Attestation:       "none",
		UserVerification:  "preferred",
		ChallengeTTL:      5 * time.Minute,
		ChallengeCapacity: 1000,
	}
}

// SetDefaults fills in default values for unset fields.
func (c *Config) SetDefaults() {
	if c.Attestation == "" {
		c.Attestation = "none"
	}
	if c.UserVerification == "" {
		c.UserVerification = "preferred"
	}
	if c.ChallengeTTL == 0 {
		c.ChallengeTTL = 5 * time.Minute
	}
	if c.ChallengeCapacity == 0 {
		c.ChallengeCapacity = 1000
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.RPID == "" {
		return fmt.Errorf("rp_id is required")
	}
	if c.RPDisplayName == "" {
		return fmt.Errorf("rp_display_name is required")
	}
	if len(c.RPOrigins) == 0 {
		return fmt.Errorf("at least one rp_origin is required")
	}
	for _, origin := range c.RPOrigins {
		u, err := url.Parse(origin)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("invalid rp_origin %q", origin)
		}
	}
	switch strings.ToLower(c.Attestation) {
	case "", "none", "indirect", "direct":
	default:
		return fmt.Errorf("invalid attestation preference %q", c.Attestation)
	}
	switch strings.ToLower(c.UserVerification) {
	case "", "required", "preferred", "discouraged":
	default:
		return fmt.Errorf("invalid user_verification %q", c.UserVerification)
	}
	if c.ChallengeTTL <= 0 {
		return fmt.Errorf("challenge_ttl must be positive")
	}
	if c.ChallengeCapacity <= 0 {
		return fmt.Errorf("challenge_capacity must be positive")
	}
	return nil
}

// toWebauthnConfig converts the configuration to the library representation.
func (c *Config) toWebauthnConfig() *webauthn.Config {
	return &webauthn.Config{
		RPID:                  c.RPID,
		RPDisplayName:         c.RPDisplayName,
		RPOrigins:             c.RPOrigins,
		AttestationPreference: protocol.ConveyancePreference(strings.ToLower(c.Attestation)),
		AuthenticatorSelection: protocol.AuthenticatorSelection{
			ResidentKey:      protocol.ResidentKeyRequirementPreferred,
			UserVerification: protocol.UserVerificationRequirement(strings.ToLower(c.UserVerification)),
		},
		Timeouts: webauthn.TimeoutsConfig{
			Login: webauthn.TimeoutConfig{
				Enforce: true,
				Timeout: c.ChallengeTTL,
			},
			Registration: webauthn.TimeoutConfig{
				Enforce: true,
				Timeout: c.ChallengeTTL,
			},
		},
	}
}
