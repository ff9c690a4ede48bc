package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"contas/internal/cache"
	ports "contas/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

const (
	rowCacheSize = 10000
	rowCacheTTL  = 10 * time.Minute
)

// Client mirrors rows into one sheet of a spreadsheet. Row numbers of known
// ids are cached; the cache is dropped whenever a write hits an unexpected
// row so the next lookup re-reads column A.
type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string

	// mu serializes writes so two appends never race for the same row.
	mu          sync.Mutex
	rows        *cache.LRUCache[int]
	headerReady bool
}

var _ ports.RowWriter = (*Client)(nil)

// New creates a Sheets client authenticated with service account
// credentials from the environment.
func New(ctx context.Context, spreadsheetID, sheetName string) (*Client, error) {
	spreadsheetID = strings.TrimSpace(spreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	sheetName = strings.TrimSpace(sheetName)
	if sheetName == "" {
		return nil, errors.New("missing sheet name")
	}

	svc, err := newSheetsService(ctx)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheetName:     sheetName,
		rows:          cache.NewLRUCache[int](rowCacheSize, rowCacheTTL),
	}, nil
}

// RowCache exposes the row index cache so callers can register it for
// periodic cleanup.
func (c *Client) RowCache() cache.Cleaner { return c.rows }

// newSheetsService initializes a Sheets Service using Service Account credentials.
// Uses GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS.
func newSheetsService(ctx context.Context) (*gsheet.Service, error) {
	credentialsJSON, err := serviceAccountCredentials()
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "Creating Google Sheets service",
		"credentials_size", len(credentialsJSON),
		"scope", gsheet.SpreadsheetsScope)

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope),
		goption.WithHTTPClient(newHTTPClientWithPooling()))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

func serviceAccountCredentials() ([]byte, error) {
	if inline := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON")); inline != "" {
		return []byte(inline), nil
	}
	file := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if file == "" {
		file = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}
	if file == "" {
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
	b, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("read service account file: %w", err)
	}
	return b, nil
}

// newHTTPClientWithPooling creates an HTTP client tuned for the Sheets API
// with connection pooling and bounded timeouts.
func newHTTPClientWithPooling() *http.Client {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		MaxConnsPerHost:       50,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
	}
	return &http.Client{Transport: transport, Timeout: 60 * time.Second}
}

// Upsert implements ports.RowWriter.
func (c *Client) Upsert(ctx context.Context, row ports.Row) error {
	if row.ID == "" {
		return errors.New("row without id")
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ensureHeader(ctx); err != nil {
		return err
	}

	n, found, err := c.findRow(ctx, row.ID)
	if err != nil {
		return err
	}
	vr := &gsheet.ValueRange{Values: [][]interface{}{toInterfaces(row.Values())}}

	if found {
		rng := rowRange(c.sheetName, n, len(ports.Header))
		_, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, vr).
			ValueInputOption("RAW").Context(ctx).Do()
		if err != nil {
			c.rows.Clear()
			return fmt.Errorf("update %s: %w", rng, err)
		}
		return nil
	}

	rng := fmt.Sprintf("%s!A:%s", quoteSheet(c.sheetName), columnName(len(ports.Header)))
	resp, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, vr).
		ValueInputOption("RAW").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("append to %s: %w", c.sheetName, err)
	}
	if resp.Updates != nil {
		if n, err := rowNumberFromRange(resp.Updates.UpdatedRange); err == nil {
			c.rows.Set(row.ID, n)
		}
	}
	return nil
}

// Remove implements ports.RowWriter. The row is cleared, not deleted, so
// cached row numbers of other ids stay valid.
func (c *Client) Remove(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	n, found, err := c.findRow(ctx, id)
	if err != nil || !found {
		return err
	}
	rng := rowRange(c.sheetName, n, len(ports.Header))
	if _, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, rng, &gsheet.ClearValuesRequest{}).
		Context(ctx).Do(); err != nil {
		c.rows.Clear()
		return fmt.Errorf("clear %s: %w", rng, err)
	}
	c.rows.Delete(id)
	return nil
}

// findRow returns the sheet row holding id. On a cache miss column A is
// read once and every id found is cached.
func (c *Client) findRow(ctx context.Context, id string) (int, bool, error) {
	if n, ok := c.rows.Get(id); ok {
		return n, true, nil
	}
	rng := fmt.Sprintf("%s!A:A", quoteSheet(c.sheetName))
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return 0, false, fmt.Errorf("read %s: %w", rng, err)
	}
	index := indexRows(resp.Values)
	for k, v := range index {
		c.rows.Set(k, v)
	}
	n, ok := index[id]
	return n, ok, nil
}

func (c *Client) ensureHeader(ctx context.Context) error {
	if c.headerReady {
		return nil
	}
	rng := rowRange(c.sheetName, 1, len(ports.Header))
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("read header: %w", err)
	}
	if len(resp.Values) == 0 || len(resp.Values[0]) == 0 {
		vr := &gsheet.ValueRange{Values: [][]interface{}{toInterfaces(ports.Header)}}
		if _, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, vr).
			ValueInputOption("RAW").Context(ctx).Do(); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
	}
	c.headerReady = true
	return nil
}
