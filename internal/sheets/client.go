package sheets

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"valeads-engine/internal/retry"
)

type Client struct {
	service    *sheets.Service
	maxRetries int
}

func NewClient(ctx context.Context, credentialsFile string, maxRetries int) (*Client, error) {
	service, err := sheets.NewService(ctx, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}
	return &Client{service: service, maxRetries: maxRetries}, nil
}

// ReplaceRange clears range_ and writes values starting at its top-left cell.
func (c *Client) ReplaceRange(ctx context.Context, spreadsheetID, range_ string, values [][]any) error {
	policy := retry.Sheets(c.maxRetries)

	_, err := retry.WithRetry(ctx, policy, func(ctx context.Context) (*sheets.ClearValuesResponse, error) {
		resp, err := c.service.Spreadsheets.Values.Clear(spreadsheetID, range_, &sheets.ClearValuesRequest{}).
			Context(ctx).
			Do()
		return resp, classify(err)
	})
	if err != nil {
		return fmt.Errorf("failed to clear range: %w", err)
	}

	_, err = retry.WithRetry(ctx, policy, func(ctx context.Context) (*sheets.UpdateValuesResponse, error) {
		resp, err := c.service.Spreadsheets.Values.Update(spreadsheetID, range_, &sheets.ValueRange{Values: values}).
			ValueInputOption("RAW").
			Context(ctx).
			Do()
		return resp, classify(err)
	})
	if err != nil {
		return fmt.Errorf("failed to update range: %w", err)
	}
	return nil
}

// classify stops retries on client errors other than rate limiting.
func classify(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Code >= 400 && gerr.Code < 500 && gerr.Code != http.StatusTooManyRequests {
		return retry.Permanent(err)
	}
	return err
}
