package evm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"wallet-swap/pkg/types"
)

type permitPayload struct {
	Domain map[string]any             `json:"domain"`
	Types  map[string][]apitypes.Type `json:"types"`
	Values map[string]any             `json:"values"`
}

// PermitTypedData converts Trading API permitData ({domain, types, values})
// into EIP-712 typed data. The primary type is the one no other type references.
func PermitTypedData(raw json.RawMessage, chainID types.ChainID) (apitypes.TypedData, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var p permitPayload
	if err := dec.Decode(&p); err != nil {
		return apitypes.TypedData{}, fmt.Errorf("invalid permit data: %w", err)
	}
	if len(p.Types) == 0 || p.Values == nil {
		return apitypes.TypedData{}, fmt.Errorf("invalid permit data: missing types or values")
	}

	domain, domainType, err := permitDomain(p.Domain, chainID)
	if err != nil {
		return apitypes.TypedData{}, err
	}

	primary, err := primaryType(p.Types)
	if err != nil {
		return apitypes.TypedData{}, err
	}

	typesWithDomain := apitypes.Types{"EIP712Domain": domainType}
	for name, fields := range p.Types {
		if name != "EIP712Domain" {
			typesWithDomain[name] = fields
		}
	}

	return apitypes.TypedData{
		Types:       typesWithDomain,
		PrimaryType: primary,
		Domain:      domain,
		Message:     normalizeNumbers(p.Values).(map[string]any),
	}, nil
}

func permitDomain(d map[string]any, chainID types.ChainID) (apitypes.TypedDataDomain, []apitypes.Type, error) {
	var (
		domain apitypes.TypedDataDomain
		fields []apitypes.Type
	)
	if name, ok := d["name"].(string); ok && name != "" {
		domain.Name = name
		fields = append(fields, apitypes.Type{Name: "name", Type: "string"})
	}
	if version, ok := d["version"].(string); ok && version != "" {
		domain.Version = version
		fields = append(fields, apitypes.Type{Name: "version", Type: "string"})
	}
	if raw, ok := d["chainId"]; ok {
		id, err := parseChainID(raw)
		if err != nil {
			return domain, nil, err
		}
		chainID = id
	}
	if chainID != 0 {
		domain.ChainId = math.NewHexOrDecimal256(int64(chainID))
		fields = append(fields, apitypes.Type{Name: "chainId", Type: "uint256"})
	}
	if vc, ok := d["verifyingContract"].(string); ok && vc != "" {
		domain.VerifyingContract = vc
		fields = append(fields, apitypes.Type{Name: "verifyingContract", Type: "address"})
	}
	if len(fields) == 0 {
		return domain, nil, fmt.Errorf("invalid permit data: empty domain")
	}
	return domain, fields, nil
}

func parseChainID(v any) (types.ChainID, error) {
	switch id := v.(type) {
	case json.Number:
		n, err := id.Int64()
		if err != nil {
			return 0, fmt.Errorf("invalid domain chainId %q: %w", id, err)
		}
		return types.ChainID(n), nil
	case string:
		n, ok := math.ParseBig256(id)
		if !ok || !n.IsInt64() {
			return 0, fmt.Errorf("invalid domain chainId %q", id)
		}
		return types.ChainID(n.Int64()), nil
	}
	return 0, fmt.Errorf("invalid domain chainId %v", v)
}

func primaryType(all map[string][]apitypes.Type) (string, error) {
	referenced := make(map[string]bool)
	for _, fields := range all {
		for _, f := range fields {
			referenced[strings.TrimSuffix(f.Type, "[]")] = true
		}
	}
	var candidates []string
	for name := range all {
		if name != "EIP712Domain" && !referenced[name] {
			candidates = append(candidates, name)
		}
	}
	if len(candidates) == 0 {
		return "", fmt.Errorf("invalid permit data: no primary type")
	}
	sort.Strings(candidates)
	return candidates[0], nil
}

// normalizeNumbers turns json.Number into strings, which the EIP-712 encoder parses losslessly
func normalizeNumbers(v any) any {
	switch x := v.(type) {
	case json.Number:
		return x.String()
	case map[string]any:
		for k, val := range x {
			x[k] = normalizeNumbers(val)
		}
		return x
	case []any:
		for i, val := range x {
			x[i] = normalizeNumbers(val)
		}
		return x
	}
	return v
}
