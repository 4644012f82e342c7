package vendors

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"
)

const salesforceAPIVersion = "v59.0"

// salesforceAdapter reads object describes and records over the Salesforce
// REST API. Configuration: instance_url, access_token.
type salesforceAdapter struct {
	instanceURL string
	token       string
	client      *http.Client
}

// NewSalesforceAdapter creates an adapter from cfg["instance_url"] and
// cfg["access_token"].
func NewSalesforceAdapter(cfg map[string]string) (Adapter, error) {
	return &salesforceAdapter{
		instanceURL: strings.TrimRight(cfg["instance_url"], "/"),
		token:       cfg["access_token"],
		client:      &http.Client{Timeout: 30 * time.Second},
	}, nil
}

func (s *salesforceAdapter) Vendor() string {
	return VendorSalesforce
}

func (s *salesforceAdapter) Validate() error {
	if s.instanceURL == "" || s.token == "" {
		return fmt.Errorf("%w: salesforce adapter requires instance_url and access_token", ErrInvalidConfig)
	}
	return nil
}

func (s *salesforceAdapter) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.instanceURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.token)
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return NewFetchError(VendorSalesforce, "request", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return NewFetchError(VendorSalesforce, "request",
			fmt.Errorf("status %d for %s", resp.StatusCode, path))
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("salesforce %s: status %d", path, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (s *salesforceAdapter) Test(ctx context.Context) error {
	var limits map[string]any
	return s.get(ctx, fmt.Sprintf("/services/data/%s/limits", salesforceAPIVersion), &limits)
}

func (s *salesforceAdapter) Health(ctx context.Context) error {
	return s.Test(ctx)
}

type sfDescribe struct {
	Fields []struct {
		Name string `json:"name"`
		Type string `json:"type"`
	} `json:"fields"`
}

func (s *salesforceAdapter) FetchSchema(ctx context.Context, entity string) (*TableSchema, error) {
	var describe sfDescribe
	path := fmt.Sprintf("/services/data/%s/sobjects/%s/describe", salesforceAPIVersion, url.PathEscape(entity))
	if err := s.get(ctx, path, &describe); err != nil {
		return nil, err
	}

	fields := make(map[string]FieldType, len(describe.Fields))
	for _, f := range describe.Fields {
		fields[f.Name] = mapSalesforceType(f.Type)
	}

	return &TableSchema{Entity: entity, Fields: fields}, nil
}

type sfQueryResult struct {
	Done           bool     `json:"done"`
	NextRecordsURL string   `json:"nextRecordsUrl"`
	Records        []Record `json:"records"`
}

func (s *salesforceAdapter) FetchRecords(ctx context.Context, entity string) ([]Record, error) {
	schema, err := s.FetchSchema(ctx, entity)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(schema.Fields))
	for name := range schema.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	soql := fmt.Sprintf("SELECT %s FROM %s", strings.Join(names, ","), entity)
	path := fmt.Sprintf("/services/data/%s/query?q=%s", salesforceAPIVersion, url.QueryEscape(soql))

	records := make([]Record, 0)
	for {
		var page sfQueryResult
		if err := s.get(ctx, path, &page); err != nil {
			return nil, err
		}

		for _, rec := range page.Records {
			delete(rec, "attributes")
			records = append(records, rec)
		}

		if page.Done || page.NextRecordsURL == "" {
			break
		}
		path = page.NextRecordsURL
	}

	return records, nil
}

func mapSalesforceType(sfType string) FieldType {
	switch sfType {
	case "int", "double", "currency", "percent", "long":
		return TypeNumber
	case "boolean":
		return TypeBool
	case "date", "datetime", "time":
		return TypeTime
	case "id", "reference":
		return TypeID
	case "address", "location":
		return TypeJSON
	default:
		return TypeString
	}
}
