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

	"github.com/fxamacker/cbor/v2"
)

// COSE label and value constants, per RFC 9052/9053.
const (
	coseKeyTypeLabel   = 1
	coseAlgorithmLabel = 3

	coseKeyTypeOKP = 1
	coseKeyTypeEC2 = 2
	coseKeyTypeRSA = 3

	coseAlgES256 = -7
	coseAlgEdDSA = -8
	coseAlgES384 = -35
	coseAlgES512 = -36
	coseAlgPS256 = -37
	coseAlgRS256 = -257
)

// KeyInfo summarizes the public key algorithm of a stored credential.
type KeyInfo struct {
	KeyType   int64  `json:"key_type"`
	Algorithm int64  `json:"algorithm"`
	Label     string `json:"label"`
}

// ParseKeyInfo decodes the COSE key of a credential and returns a summary of
// its key type and signature algorithm.
func ParseKeyInfo(coseKey []byte) (*KeyInfo, error) {
	var raw map[int64]any
	if err := cbor.Unmarshal(coseKey, &raw); err != nil {
		return nil, WrapError("parse cose key", err)
	}

	kty, err := coseInt(raw, coseKeyTypeLabel)
	if err != nil {
		return nil, err
	}
	alg, err := coseInt(raw, coseAlgorithmLabel)
	if err != nil {
		return nil, err
	}

	return &KeyInfo{
		KeyType:   kty,
		Algorithm: alg,
		Label:     coseAlgLabel(alg),
	}, nil
}

// coseInt extracts an integer value from a decoded COSE map. CBOR decodes
// small integers as uint64 or int64 depending on sign.
func coseInt(raw map[int64]any, label int64) (int64, error) {
	v, ok := raw[label]
	if !ok {
		return 0, NewError("parse cose key", fmt.Errorf("missing label %d", label))
	}
	switch n := v.(type) {
	case int64:
		return n, nil
	case uint64:
		return int64(n), nil
	default:
		return 0, NewError("parse cose key", fmt.Errorf("label %d is not an integer", label))
	}
}

func coseAlgLabel(alg int64) string {
	switch alg {
	case coseAlgES256:
		return "ES256"
	case coseAlgES384:
		return "ES384"
	case coseAlgES512:
		return "ES512"
	case coseAlgEdDSA:
		return "EdDSA"
	case coseAlgPS256:
		return "PS256"
	case coseAlgRS256:
		return "RS256"
	default:
		return fmt.Sprintf("COSE(%d)", alg)
	}
}
