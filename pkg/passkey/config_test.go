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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "localhost", cfg.RPID)
	assert.Equal(t, 5*time.Minute, cfg.ChallengeTTL)
	assert.Equal(t, 1000, cfg.ChallengeCapacity)
}

func TestConfigSetDefaults(t *testing.T) {
	cfg := &Config{
		RPID:          "example.com",
		RPDisplayName: "Example",
		RPOrigins:     []string{"https://example.com"},
	}
	cfg.SetDefaults()

	assert.Equal(t, "none", cfg.Attestation)
	assert.Equal(t, "preferred", cfg.UserVerification)
	assert.Equal(t, 5*time.Minute, cfg.ChallengeTTL)
	assert.Equal(t, 1000, cfg.ChallengeCapacity)
	assert.NoError(t, cfg.Validate())
}

func TestConfigValidate(t *testing.T) {
	valid := func() *Config {
		cfg := &Config{
			RPID:          "example.com",
			RPDisplayName: "Example",
			RPOrigins:     []string{"https://example.com"},
		}
		cfg.SetDefaults()
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "valid",
			mutate:  func(c *Config) {},
			wantErr: "",
		},
		{
			name:    "missing rp_id",
			mutate:  func(c *Config) { c.RPID = "" },
			wantErr: "rp_id is required",
		},
		{
			name:    "missing display name",
			mutate:  func(c *Config) { c.RPDisplayName = "" },
			wantErr: "rp_display_name is required",
		},
		{
			name:    "no origins",
			mutate:  func(c *Config) { c.RPOrigins = nil },
			wantErr: "at least one rp_origin",
		},
		{
			name:    "bad origin",
			mutate:  func(c *Config) { c.RPOrigins = []string{"not a url"} },
			wantErr: "invalid rp_origin",
		},
		{
			name:    "bad attestation",
			mutate:  func(c *Config) { c.Attestation = "enterprise" },
			wantErr: "invalid attestation",
		},
		{
			name:    "bad user verification",
			mutate:  func(c *Config) { c.UserVerification = "always" },
			wantErr: "invalid user_verification",
		},
		{
			name:    "negative ttl",
			mutate:  func(c *Config) { c.ChallengeTTL = -time.Minute },
			wantErr: "challenge_ttl must be positive",
		},
		{
			name:    "negative capacity",
			mutate:  func(c *Config) { c.ChallengeCapacity = -1 },
			wantErr: "challenge_capacity must be positive",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}
