package hz

import (
	"context"
	"net/http"
	"sort"
)

const (
	listOngoingPath      = "/otc-business/hzotcContract/listOngoing"
	listOngoingByWeiPath = "/otc-business/hzotcContract/listOngoingByWei"
)

// OngoingContract is the part of an in-flight OTC contract the catalog uses.
// Rows are decoded loosely: a field of the wrong JSON type reads as empty.
type OngoingContract struct {
	ContractCode string `json:"contract_code"`
	VarietyCode  string `json:"variety_code"`
	VarietyName  string `json:"variety_name"`
}

// ListOngoing returns the in-flight contracts
func (c *Client) ListOngoing(ctx context.Context) ([]OngoingContract, error) {
	return c.listContracts(ctx, listOngoingPath)
}

// ListOngoingByWei is the same list from the per-desk endpoint
func (c *Client) ListOngoingByWei(ctx context.Context) ([]OngoingContract, error) {
	return c.listContracts(ctx, listOngoingByWeiPath)
}

func (c *Client) listContracts(ctx context.Context, endpoint string) ([]OngoingContract, error) {
	var rows []map[string]interface{}
	if err := c.request(ctx, http.MethodPost, endpoint, nil, &rows); err != nil {
		return nil, err
	}

	out := make([]OngoingContract, 0, len(rows))
	for _, row := range rows {
		oc := OngoingContract{
			ContractCode: stringField(row, "contractCode"),
			VarietyCode:  stringField(row, "varietyCode"),
			VarietyName:  stringField(row, "varietyName"),
		}
		if oc.VarietyName == "" {
			if info, ok := row["varietyInfo"].(map[string]interface{}); ok {
				oc.VarietyName = stringField(info, "varietyName")
			}
		}
		out = append(out, oc)
	}
	return out, nil
}

// VarietyMap returns {varietyCode: varietyName} for the in-flight
// contracts. Rows without a code or any usable name are skipped.
func (c *Client) VarietyMap(ctx context.Context) (map[string]string, error) {
	contracts, err := c.ListOngoing(ctx)
	if err != nil {
		return nil, err
	}

	out := make(map[string]string)
	for _, oc := range contracts {
		if oc.VarietyCode == "" || oc.VarietyName == "" {
			continue
		}
		out[oc.VarietyCode] = oc.VarietyName
	}

	c.logger.WithFields(map[string]interface{}{
		"contracts": len(contracts),
		"varieties": len(out),
	}).Info("HZ variety map loaded")
	return out, nil
}

// SortedCodes returns the keys of a variety map in order
func SortedCodes(varieties map[string]string) []string {
	codes := make([]string, 0, len(varieties))
	for code := range varieties {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

func stringField(m map[string]interface{}, key string) string {
	s, _ := m[key].(string)
	return s
}
