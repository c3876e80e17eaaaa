//go:build staging

package staging

import (
	"encoding/json"
	"net/http"
	"testing"
)

type farmStatusResponse struct {
	Mode              string `json:"mode"`
	TotalRewardSupply string `json:"total_reward_supply"`
	RoundsTotal       uint64 `json:"rounds_total"`
	SetupFinalized    bool   `json:"setup_finalized"`
}

func TestFarmStatus(t *testing.T) {
	resp, body := makeRequest(t, "GET", "/api/v1/farm", nil)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d. Body: %s", resp.StatusCode, string(body))
	}

	var status farmStatusResponse
	if err := json.Unmarshal(body, &status); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}

	if status.Mode != "fungible" && status.Mode != "nft" {
		t.Errorf("Expected a valid farm mode, got %q", status.Mode)
	}

	if status.RoundsTotal == 0 {
		t.Error("Expected a nonzero emission schedule")
	}
}

func TestStakeValidation(t *testing.T) {
	// A stake without an account must be rejected before reaching the service
	resp, body := makeRequest(t, "POST", "/api/v1/farm/stake", map[string]string{
		"amount": "100",
	})

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d. Body: %s", resp.StatusCode, string(body))
	}
}

func TestUnknownSettlement(t *testing.T) {
	resp, _ := makeRequest(t, "GET", "/api/v1/settlements/00000000-0000-0000-0000-000000000000", nil)

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", resp.StatusCode)
	}
}

func TestVersionEndpoint(t *testing.T) {
	resp, body := makeRequest(t, "GET", "/version", nil)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}

	var info map[string]interface{}
	if err := json.Unmarshal(body, &info); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}

	if info["version"] == "" {
		t.Error("Expected a version string")
	}
}
